package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/jackbot/status"
	"github.com/onnwee/jackbot/telemetry"
)

// Defaults for the reconciliation loop.
const (
	DefaultInterval     = 3 * time.Second
	DefaultFetchTimeout = 5 * time.Second
)

// State is the agent's position in its poll cycle.
type State int32

const (
	Idle State = iota
	Polling
	Converging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Converging:
		return "converging"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// StatusFetcher reads the desired bot status from the API.
type StatusFetcher interface {
	Status(ctx context.Context) (status.BotStatus, error)
}

// Membership joins and leaves chat channels. *twitch.Client satisfies it.
type Membership interface {
	Join(channels ...string)
	Depart(channel string)
}

// Agent keeps the bot's joined channels in line with the status held by the
// API. It polls on a fixed interval and retries failed fetches on the next
// tick without backoff.
type Agent struct {
	fetcher      StatusFetcher
	members      Membership
	interval     time.Duration
	fetchTimeout time.Duration
	partRemoved  bool

	mu          sync.Mutex
	state       State
	snapshot    status.BotStatus
	hasSnapshot bool
	joined      []string
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithInterval sets the poll interval. Non-positive values keep the default.
func WithInterval(d time.Duration) AgentOption {
	return func(a *Agent) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithFetchTimeout bounds each status fetch. Non-positive values keep the default.
func WithFetchTimeout(d time.Duration) AgentOption {
	return func(a *Agent) {
		if d > 0 {
			a.fetchTimeout = d
		}
	}
}

// WithPartRemoved controls whether channels dropped from the status are left.
// With false the agent only ever joins.
func WithPartRemoved(part bool) AgentOption {
	return func(a *Agent) { a.partRemoved = part }
}

// WithJoined records channels the bot already joined at startup.
func WithJoined(channels ...string) AgentOption {
	return func(a *Agent) {
		for _, ch := range channels {
			if ch = channelKey(ch); ch != "" && !slices.Contains(a.joined, ch) {
				a.joined = append(a.joined, ch)
			}
		}
	}
}

// NewAgent returns an idle Agent with no snapshot.
func NewAgent(f StatusFetcher, m Membership, opts ...AgentOption) *Agent {
	a := &Agent{
		fetcher:      f,
		members:      m,
		interval:     DefaultInterval,
		fetchTimeout: DefaultFetchTimeout,
		partRemoved:  true,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (a *Agent) Run(ctx context.Context) {
	slog.Info("reconciliation agent started",
		slog.Duration("interval", a.interval),
		slog.Bool("part_removed", a.partRemoved),
		slog.String("component", "reconcile"))
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		_ = a.Poll(ctx)
		select {
		case <-ctx.Done():
			slog.Info("reconciliation agent stopped", slog.String("component", "reconcile"))
			return
		case <-ticker.C:
		}
	}
}

// Poll runs one fetch-compare-converge cycle. A fetch error leaves the
// snapshot and joined set untouched and is returned.
func (a *Agent) Poll(ctx context.Context) error {
	a.setState(Polling)
	defer a.setState(Idle)

	fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	next, err := a.fetcher.Status(fetchCtx)
	cancel()
	if err != nil {
		slog.Warn("status poll failed", slog.Any("err", err), slog.String("component", "reconcile"))
		telemetry.RecordReconcilePoll("error", 0, 0)
		return fmt.Errorf("fetch status: %w", err)
	}

	a.mu.Lock()
	if a.hasSnapshot && next.Equal(a.snapshot) {
		a.mu.Unlock()
		telemetry.RecordReconcilePoll("unchanged", 0, 0)
		return nil
	}
	a.state = Converging
	toJoin, toPart := a.diffLocked(next.Channels)
	a.mu.Unlock()

	if len(toJoin) > 0 {
		a.members.Join(toJoin...)
	}
	for _, ch := range toPart {
		a.members.Depart(ch)
	}

	a.mu.Lock()
	for _, ch := range toJoin {
		a.joined = append(a.joined, ch)
	}
	a.joined = slices.DeleteFunc(a.joined, func(ch string) bool { return slices.Contains(toPart, ch) })
	a.snapshot = next.Clone()
	a.hasSnapshot = true
	a.mu.Unlock()

	telemetry.RecordReconcilePoll("converged", len(toJoin), len(toPart))
	slog.Info("bot status changed",
		slog.Any("channels", next.Channels),
		slog.String("mode", next.Mode),
		slog.Any("joined", toJoin),
		slog.Any("parted", toPart),
		slog.String("component", "reconcile"))
	return nil
}

// channelKey normalizes a channel name the way IRC membership does.
func channelKey(ch string) string {
	return strings.ToLower(strings.TrimSpace(ch))
}

func (a *Agent) diffLocked(channels []string) (toJoin, toPart []string) {
	want := make([]string, 0, len(channels))
	for _, ch := range channels {
		if ch = channelKey(ch); ch != "" {
			want = append(want, ch)
		}
	}
	for _, ch := range want {
		if slices.Contains(a.joined, ch) || slices.Contains(toJoin, ch) {
			continue
		}
		toJoin = append(toJoin, ch)
	}
	if a.partRemoved {
		for _, ch := range a.joined {
			if !slices.Contains(want, ch) {
				toPart = append(toPart, ch)
			}
		}
	}
	return toJoin, toPart
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// State reports where the agent is in its cycle.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Joined returns the channels the agent believes the bot is in, in join order.
func (a *Agent) Joined() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.joined)
}

// Snapshot returns a copy of the last converged status. ok is false until the
// first successful poll.
func (a *Agent) Snapshot() (s status.BotStatus, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot.Clone(), a.hasSnapshot
}
