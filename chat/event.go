package chat

import (
	"slices"
	"time"
)

// Event is a single chat message observed on a channel, normalized by the bot.
// ReceiptTime is assigned by the Store; any value set by the caller is overwritten.
type Event struct {
	Channel     string    `json:"channel"`
	AuthorName  string    `json:"author_name"`
	AuthorID    string    `json:"author_id"`
	Text        string    `json:"text"`
	IsCommand   bool      `json:"is_command"`
	CommandType string    `json:"command_type,omitempty"`
	SourceTime  time.Time `json:"source_time,omitzero"`
	ReceiptTime time.Time `json:"receipt_time"`
}

// Display is the subset of Event fields returned to dashboards and other readers.
type Display struct {
	Channel     string    `json:"channel"`
	AuthorName  string    `json:"author_name"`
	Text        string    `json:"text"`
	ReceiptTime time.Time `json:"receipt_time"`
	IsCommand   bool      `json:"is_command"`
	CommandType string    `json:"command_type,omitempty"`
}

// Display projects the event onto its display fields.
func (e Event) Display() Display {
	return Display{
		Channel:     e.Channel,
		AuthorName:  e.AuthorName,
		Text:        e.Text,
		ReceiptTime: e.ReceiptTime,
		IsCommand:   e.IsCommand,
		CommandType: e.CommandType,
	}
}

// Normalize clears CommandType on non-command events so the pair stays consistent.
func (e Event) Normalize() Event {
	if !e.IsCommand {
		e.CommandType = ""
	}
	return e
}

// Query selects events from a Store. A zero Window and an empty Channels list
// each mean "no constraint" on that axis.
type Query struct {
	Window   time.Duration
	Channels []string
}

// Dedup drops repeated events (whole-record equality) keeping the first
// occurrence. The store never deduplicates; this is for display consumers that
// merge overlapping windowed reads.
func Dedup(events []Display) []Display {
	seen := make(map[Display]struct{}, len(events))
	out := make([]Display, 0, len(events))
	for _, e := range events {
		// time.Time carries a location pointer; compare on the instant.
		key := e
		key.ReceiptTime = e.ReceiptTime.UTC()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return slices.Clip(out)
}
