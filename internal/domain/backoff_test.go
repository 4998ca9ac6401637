package domain_test

import (
	"testing"
	"time"

	"github.com/rcarmo/guerite/internal/domain"
)

func TestNextBackoffUntilDoublesAndCaps(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	max := time.Hour

	cases := []struct {
		failures int
		want     time.Duration
	}{
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{3, 8 * time.Minute},
		{4, 16 * time.Minute},
		{10, time.Hour}, // capped
	}
	for _, c := range cases {
		got := domain.NextBackoffUntil(now, c.failures, max)
		want := now.Add(c.want)
		if !got.Equal(want) {
			t.Errorf("failures=%d: got %v, want %v", c.failures, got, want)
		}
	}
}

func TestBackoffRecordOnSuccessClearsFailures(t *testing.T) {
	now := time.Now()
	r := domain.BackoffRecord{ConsecutiveFailures: 3, BackoffUntilTS: now.Add(time.Hour)}
	r.OnSuccess(now)
	if r.ConsecutiveFailures != 0 {
		t.Errorf("expected consecutive failures cleared, got %d", r.ConsecutiveFailures)
	}
	if !r.BackoffUntilTS.IsZero() {
		t.Errorf("expected backoff_until_ts cleared, got %v", r.BackoffUntilTS)
	}
}

func TestBackoffRecordInCooldownOrBackoff(t *testing.T) {
	now := time.Now()
	r := domain.BackoffRecord{LastActionTS: now}
	if !r.InCooldownOrBackoff(now.Add(30*time.Second), time.Minute) {
		t.Error("expected in cooldown within 60s window")
	}
	if r.InCooldownOrBackoff(now.Add(2*time.Minute), time.Minute) {
		t.Error("expected cooldown to have elapsed")
	}
}

func TestBackoffRecordHealthRestartAllowed(t *testing.T) {
	now := time.Now()
	r := domain.BackoffRecord{}
	if !r.HealthRestartAllowed(now, 5*time.Minute) {
		t.Error("expected allowed when never health-restarted")
	}
	r.LastHealthRestartTS = now
	if r.HealthRestartAllowed(now.Add(time.Minute), 5*time.Minute) {
		t.Error("expected rate-limited within backoff window")
	}
	if !r.HealthRestartAllowed(now.Add(6*time.Minute), 5*time.Minute) {
		t.Error("expected allowed after backoff window elapses")
	}
}
