package timectrl

import (
	"context"
	"testing"
	"time"
)

func TestAcceleratedRunStepsSimulatedTime(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	d := New(start, 100*time.Millisecond, Accelerated)

	var ticks []time.Time
	d.AddListener(func(now time.Time) { ticks = append(ticks, now) })

	if err := d.Run(context.Background(), 500*time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(ticks) != 5 {
		t.Fatalf("got %d ticks, want 5", len(ticks))
	}
	for i, tk := range ticks {
		want := start.Add(time.Duration(i+1) * 100 * time.Millisecond)
		if !tk.Equal(want) {
			t.Fatalf("tick %d = %v, want %v", i, tk, want)
		}
	}
	if got := d.Now(); !got.Equal(start.Add(500 * time.Millisecond)) {
		t.Fatalf("Now() = %v, want %v", got, start.Add(500*time.Millisecond))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	d := New(start, time.Millisecond, RealTime)

	ctx, cancel := context.WithCancel(context.Background())
	fired := make(chan struct{}, 1)
	d.AddListener(func(time.Time) {
		select {
		case fired <- struct{}{}:
		default:
		}
		cancel()
	})

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, 0) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after cancel: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancellation")
	}
	<-fired
}

func TestStartClosesDoneChannel(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	d := New(start, 5*time.Millisecond, Accelerated)

	done := d.Start(15 * time.Millisecond)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Start did not finish")
	}

	if got := d.Now(); !got.Equal(start.Add(15 * time.Millisecond)) {
		t.Fatalf("Now() = %v, want %v", got, start.Add(15*time.Millisecond))
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
	}{
		{"realtime", RealTime},
		{"REAL", RealTime},
		{"", RealTime},
		{"accelerated", Accelerated},
		{"fast", Accelerated},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.in)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseMode(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseMode("warp9"); err == nil {
		t.Fatalf("ParseMode(warp9) should fail")
	}
}
