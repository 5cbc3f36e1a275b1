// Package bridge forwards chat events to an external visual/avatar system as
// OSC control messages over UDP.
//
// Each event becomes one datagram: an OSC message at a fixed address whose
// arguments are "field:::value" strings in a stable field order. Delivery is
// fire-and-forget. The destination is read from the status registry on every
// send; when it changes the UDP socket is closed and re-dialed before writing.
package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/onnwee/jackbot/chat"
	"github.com/onnwee/jackbot/telemetry"
)

// DefaultAddress is the OSC address used for chat events.
const DefaultAddress = "/twitch-chat"

// Separator joins field names and values in message arguments.
const Separator = ":::"

// ErrNoTarget is returned by Send when no control target is configured.
var ErrNoTarget = errors.New("bridge: no control target configured")

// TargetSource yields the current control target as host:port.
type TargetSource interface {
	ControlTarget() string
}

// DialFunc opens a datagram connection to target.
type DialFunc func(target string) (net.Conn, error)

// Bridge sends control messages to the target named by its TargetSource.
type Bridge struct {
	src     TargetSource
	address string
	dial    DialFunc

	mu     sync.Mutex
	conn   net.Conn
	target string
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithAddress overrides the OSC address (default DefaultAddress).
func WithAddress(addr string) Option {
	return func(b *Bridge) {
		if addr != "" {
			b.address = addr
		}
	}
}

// WithDialer overrides how sockets are opened.
func WithDialer(d DialFunc) Option {
	return func(b *Bridge) { b.dial = d }
}

func dialUDP(target string) (net.Conn, error) {
	d := net.Dialer{Timeout: 2 * time.Second}
	return d.Dial("udp", target)
}

// New builds a Bridge and binds the current target, if any. A bind failure
// here is returned so the caller can treat it as fatal at startup.
func New(src TargetSource, opts ...Option) (*Bridge, error) {
	b := &Bridge{src: src, address: DefaultAddress, dial: dialUDP}
	for _, o := range opts {
		o(b)
	}
	if target := src.ControlTarget(); target != "" {
		conn, err := b.dial(target)
		if err != nil {
			return nil, fmt.Errorf("bind control target %s: %w", target, err)
		}
		b.conn, b.target = conn, target
	}
	return b, nil
}

// Send encodes ev and writes it as one datagram to the current target.
// Transport failures are returned to the caller; nothing is retried.
func (b *Bridge) Send(ev chat.Event) error {
	data, err := Encode(b.address, ev)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	target := b.src.ControlTarget()
	if target == "" {
		_ = b.closeLocked()
		telemetry.RecordControlMessage("no_target")
		return ErrNoTarget
	}
	if b.conn == nil || target != b.target {
		if b.conn != nil {
			slog.Info("control target changed; rebuilding socket", slog.String("from", b.target), slog.String("to", target), slog.String("component", "bridge"))
			telemetry.RecordControlRedial()
		}
		_ = b.closeLocked()
		conn, err := b.dial(target)
		if err != nil {
			telemetry.RecordControlMessage("failed")
			return fmt.Errorf("dial control target %s: %w", target, err)
		}
		b.conn, b.target = conn, target
	}

	if _, err := b.conn.Write(data); err != nil {
		telemetry.RecordControlMessage("failed")
		return fmt.Errorf("send control message to %s: %w", target, err)
	}
	telemetry.RecordControlMessage("sent")
	return nil
}

// Target returns the target the open socket is bound to, or "".
func (b *Bridge) Target() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.target
}

// Close releases the socket.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *Bridge) closeLocked() error {
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn, b.target = nil, ""
	return err
}

// Arguments lists every event field as "field:::value" in a fixed order.
// Absent optional values encode as an empty value.
func Arguments(ev chat.Event) []string {
	return []string{
		arg("channel", ev.Channel),
		arg("author_name", ev.AuthorName),
		arg("author_id", ev.AuthorID),
		arg("text", ev.Text),
		arg("is_command", strconv.FormatBool(ev.IsCommand)),
		arg("command_type", ev.CommandType),
		arg("source_time", formatTime(ev.SourceTime)),
		arg("receipt_time", formatTime(ev.ReceiptTime)),
	}
}

// Encode renders ev as a binary OSC message at address.
func Encode(address string, ev chat.Event) ([]byte, error) {
	msg := osc.NewMessage(address)
	for _, a := range Arguments(ev) {
		msg.Append(a)
	}
	data, err := msg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode control message: %w", err)
	}
	return data, nil
}

func arg(field, value string) string { return field + Separator + value }

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
