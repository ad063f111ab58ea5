package notify

import (
	"strings"
	"testing"
	"time"

	"opsboard/internal/amqp"
)

func TestSuppressorWindow(t *testing.T) {
	s := NewSuppressor(24 * time.Hour)
	now := time.Date(2026, 3, 7, 8, 0, 0, 0, time.UTC)

	if !s.Allow("lead:stale:acme", now) {
		t.Fatal("first send should be allowed")
	}
	if s.Allow("lead:stale:acme", now.Add(time.Hour)) {
		t.Error("repeat within the window should be suppressed")
	}
	if !s.Allow("lead:stale:other", now.Add(time.Hour)) {
		t.Error("a different key must not be suppressed")
	}
	if !s.Allow("lead:stale:acme", now.Add(25*time.Hour)) {
		t.Error("send after the window elapsed should be allowed")
	}
}

func TestSuppressorForget(t *testing.T) {
	s := NewSuppressor(24 * time.Hour)
	now := time.Now()
	s.Allow("k", now)
	s.Forget("k")
	if !s.Allow("k", now) {
		t.Error("Allow after Forget should succeed")
	}
}

func TestSuppressorSweep(t *testing.T) {
	s := NewSuppressor(time.Hour)
	now := time.Date(2026, 3, 7, 8, 0, 0, 0, time.UTC)
	s.Allow("old", now)
	s.Allow("fresh", now.Add(59*time.Minute))

	if removed := s.Sweep(now.Add(time.Hour)); removed != 1 {
		t.Errorf("Sweep removed %d entries, want 1", removed)
	}
	if s.Allow("fresh", now.Add(61*time.Minute)) {
		t.Error("fresh entry should survive the sweep")
	}
}

func TestFormatMessage(t *testing.T) {
	msg := amqp.NewNotificationMessage(1, "dana", "record:transitioned", "spring <reel>", "approval to published")
	got := FormatMessage(msg)
	if got == "" {
		t.Fatal("empty message")
	}
	for _, want := range []string{"record:transitioned", "&lt;reel&gt;", "dana"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatted message missing %q: %q", want, got)
		}
	}
}
