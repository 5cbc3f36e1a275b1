package status

import (
	"sync"
	"testing"
)

func TestSetThenGetReturnsExactValue(t *testing.T) {
	r := NewRegistry(BotStatus{Channels: []string{"bar"}, Mode: "testing", ControlTarget: "127.0.0.1:1"})

	want := BotStatus{Channels: []string{"foo"}, Mode: "live", ControlTarget: "10.0.0.5:9000"}
	r.Set(want)

	got := r.Get()
	if len(got.Channels) != 1 || got.Channels[0] != "foo" {
		t.Errorf("channels = %v, want [foo] (no merge with prior [bar])", got.Channels)
	}
	if got.Mode != "live" {
		t.Errorf("mode = %q, want live", got.Mode)
	}
	if got.ControlTarget != "10.0.0.5:9000" {
		t.Errorf("control target = %q, want 10.0.0.5:9000", got.ControlTarget)
	}
	if r.ControlTarget() != "10.0.0.5:9000" {
		t.Errorf("ControlTarget() = %q", r.ControlTarget())
	}
}

func TestSetReplacesWithEmptyFields(t *testing.T) {
	r := NewRegistry(BotStatus{Channels: []string{"bar"}, Mode: "testing", ControlTarget: "127.0.0.1:1"})
	r.Set(BotStatus{Mode: "idle"})

	got := r.Get()
	if len(got.Channels) != 0 || got.ControlTarget != "" {
		t.Errorf("expected full replace, got %+v", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := NewRegistry(BotStatus{Channels: []string{"a", "b"}})

	old := r.Get()
	old.Channels[0] = "hacked"
	if r.Get().Channels[0] != "a" {
		t.Fatalf("mutating a Get result changed the registry")
	}

	r.Set(BotStatus{Channels: []string{"c"}})
	if old.Channels[1] != "b" {
		t.Errorf("old handle observed a later Set: %v", old.Channels)
	}
}

func TestSetCopiesInput(t *testing.T) {
	in := BotStatus{Channels: []string{"a"}}
	r := NewRegistry(BotStatus{})
	r.Set(in)
	in.Channels[0] = "z"
	if got := r.Get().Channels[0]; got != "a" {
		t.Errorf("registry aliased caller slice, got %q", got)
	}
}

func TestEqual(t *testing.T) {
	base := BotStatus{Channels: []string{"a", "b"}, Mode: "live", ControlTarget: "h:1"}
	tests := []struct {
		name  string
		other BotStatus
		want  bool
	}{
		{"identical", base.Clone(), true},
		{"reordered channels", BotStatus{Channels: []string{"b", "a"}, Mode: "live", ControlTarget: "h:1"}, true},
		{"duplicate channel", BotStatus{Channels: []string{"a", "b", "a"}, Mode: "live", ControlTarget: "h:1"}, true},
		{"extra channel", BotStatus{Channels: []string{"a", "b", "c"}, Mode: "live", ControlTarget: "h:1"}, false},
		{"mode differs", BotStatus{Channels: []string{"a", "b"}, Mode: "test", ControlTarget: "h:1"}, false},
		{"target differs", BotStatus{Channels: []string{"a", "b"}, Mode: "live", ControlTarget: "h:2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConcurrentGetSetNeverTorn(t *testing.T) {
	a := BotStatus{Channels: []string{"a"}, Mode: "a", ControlTarget: "a:1"}
	b := BotStatus{Channels: []string{"b"}, Mode: "b", ControlTarget: "b:1"}
	r := NewRegistry(a)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			if i%2 == 0 {
				r.Set(b)
			} else {
				r.Set(a)
			}
		}
		close(stop)
	}()
	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}
		got := r.Get()
		if !got.Equal(a) && !got.Equal(b) {
			t.Fatalf("observed half-applied status %+v", got)
		}
	}
}
