package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/jackbot/chat"
)

type fakeSink struct {
	events []chat.Event
	err    error
}

func (f *fakeSink) PostMessage(_ context.Context, ev chat.Event) (time.Time, error) {
	f.events = append(f.events, ev)
	return time.Now(), f.err
}

type fakeSayer struct {
	said []string
}

func (f *fakeSayer) Say(channel, text string) { f.said = append(f.said, channel+": "+text) }

func newTestBot() (*Bot, *fakeSink, *fakeSayer) {
	sink, sayer := &fakeSink{}, &fakeSayer{}
	return &Bot{username: "jackbot", say: sayer, sink: sink, forwardTimeout: time.Second}, sink, sayer
}

func privmsg(author, channel, text string) twitch.PrivateMessage {
	return twitch.PrivateMessage{
		User:    twitch.User{ID: "id-" + author, Name: author},
		Channel: channel,
		Message: text,
		Time:    time.Date(2024, 10, 15, 14, 30, 0, 0, time.UTC),
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text  string
		ok    bool
		name  string
		nargs int
	}{
		{"hello there", false, "", 0},
		{"?hello", true, "hello", 0},
		{"  ?TALK make it loud ", true, "talk", 3},
		{"?donate 5 JACK", true, "donate", 2},
		{"?", true, "", 0},
		{"?   ", true, "", 0},
		{"", false, "", 0},
	}
	for _, tt := range tests {
		cmd, ok := ParseCommand(tt.text)
		if ok != tt.ok || cmd.Name != tt.name || len(cmd.Args) != tt.nargs {
			t.Errorf("ParseCommand(%q) = %+v, %v", tt.text, cmd, ok)
		}
	}
}

func TestParseDonation(t *testing.T) {
	d, err := ParseDonation([]string{"2.5", "JACK"})
	if err != nil || d.Amount != 2.5 || d.Token != "JACK" {
		t.Errorf("ParseDonation = %+v, %v", d, err)
	}
	for _, args := range [][]string{nil, {"5"}, {"lots", "JACK"}, {"-1", "JACK"}} {
		if _, err := ParseDonation(args); err == nil {
			t.Errorf("ParseDonation(%v) expected error", args)
		}
	}
}

func TestHandlePlainMessageForwards(t *testing.T) {
	b, sink, sayer := newTestBot()
	b.HandleMessage(privmsg("viewer", "ColinBenders", "nice stream"))

	if len(sink.events) != 1 {
		t.Fatalf("forwarded %d events, want 1", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Channel != "colinbenders" || ev.AuthorName != "viewer" || ev.AuthorID != "id-viewer" || ev.IsCommand || ev.CommandType != "" {
		t.Errorf("event = %+v", ev)
	}
	if ev.SourceTime.IsZero() {
		t.Error("source time not carried over")
	}
	if len(sayer.said) != 0 {
		t.Errorf("bot replied to plain chat: %v", sayer.said)
	}
}

func TestHandleIgnoresOwnMessages(t *testing.T) {
	b, sink, _ := newTestBot()
	b.HandleMessage(privmsg("JackBot", "c", "?hello"))
	if len(sink.events) != 0 {
		t.Errorf("own message forwarded: %+v", sink.events)
	}
}

func TestHandleCommands(t *testing.T) {
	tests := []struct {
		text     string
		wantType string
		wantSay  bool
		forward  bool
	}{
		{"?hello", CommandGreeting, true, true},
		{"?talk say something", CommandTalk, false, true},
		{"?donate 10 JACK", CommandDonate, false, true},
		{"?donate lots", "", false, false},
		{"?dance", "", false, false},
		{"?", "", false, false},
		{"  ?   ", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			b, sink, sayer := newTestBot()
			b.HandleMessage(privmsg("viewer", "c", tt.text))

			if (len(sayer.said) > 0) != tt.wantSay {
				t.Errorf("said = %v", sayer.said)
			}
			if tt.wantSay && sayer.said[0] != "c: Hello viewer!" {
				t.Errorf("reply = %q", sayer.said[0])
			}
			if !tt.forward {
				if len(sink.events) != 0 {
					t.Errorf("forwarded %+v, want nothing", sink.events)
				}
				return
			}
			if len(sink.events) != 1 {
				t.Fatalf("forwarded %d events", len(sink.events))
			}
			ev := sink.events[0]
			if !ev.IsCommand || ev.CommandType != tt.wantType || ev.Text != tt.text {
				t.Errorf("event = %+v, want command %q", ev, tt.wantType)
			}
		})
	}
}

func TestForwardFailureDoesNotStopBot(t *testing.T) {
	b, sink, _ := newTestBot()
	sink.err = errors.New("api down")
	b.HandleMessage(privmsg("viewer", "c", "one"))
	b.HandleMessage(privmsg("viewer", "c", "two"))
	if len(sink.events) != 2 {
		t.Errorf("attempted %d forwards, want 2", len(sink.events))
	}
}
