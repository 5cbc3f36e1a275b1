// Package status holds the bot status record shared between the API process
// and the Twitch bot: which channels to watch, the operating mode, and where
// control messages go.
package status

import (
	"slices"
	"sync"
)

// BotStatus is the desired state of the bot. It is replaced wholesale; there
// is no partial update.
type BotStatus struct {
	Channels      []string `json:"channels"`
	Mode          string   `json:"mode"`
	ControlTarget string   `json:"control_target"`
}

// Clone returns a deep copy.
func (s BotStatus) Clone() BotStatus {
	s.Channels = slices.Clone(s.Channels)
	return s
}

// Equal reports full structural equality. Channels compare as a set: order
// and duplicates do not matter.
func (s BotStatus) Equal(o BotStatus) bool {
	if s.Mode != o.Mode || s.ControlTarget != o.ControlTarget {
		return false
	}
	return slices.Equal(channelSet(s.Channels), channelSet(o.Channels))
}

func channelSet(chs []string) []string {
	out := slices.Clone(chs)
	slices.Sort(out)
	return slices.Compact(out)
}

// Registry holds the single current BotStatus.
type Registry struct {
	mu  sync.RWMutex
	cur BotStatus
}

// NewRegistry returns a Registry seeded with initial.
func NewRegistry(initial BotStatus) *Registry {
	return &Registry{cur: initial.Clone()}
}

// Get returns a copy of the current status. Later Sets are not visible
// through the returned value.
func (r *Registry) Get() BotStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cur.Clone()
}

// Set replaces the current status. No validation is applied.
func (r *Registry) Set(s BotStatus) {
	s = s.Clone()
	r.mu.Lock()
	r.cur = s
	r.mu.Unlock()
}

// ControlTarget returns the current control-bridge address (host:port).
func (r *Registry) ControlTarget() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cur.ControlTarget
}
