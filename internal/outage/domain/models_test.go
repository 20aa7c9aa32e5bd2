package domain

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{2*time.Hour + 30*time.Minute, "2h 30m"},
		{45 * time.Minute, "45m"},
		{time.Hour, "1h 0m"},
		{90 * time.Second, "2m"},
		{0, "0m"},
		{-time.Hour, "0m"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.d); got != tc.want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestRecordDuration(t *testing.T) {
	started := time.Date(2026, time.April, 10, 6, 0, 0, 0, time.UTC)
	ended := started.Add(4*time.Hour + 15*time.Minute)

	r := Record{StartedAt: started}
	r.RefreshDuration()
	if r.Duration != "" {
		t.Fatalf("open outage duration = %q, want empty", r.Duration)
	}

	r.EndedAt = &ended
	r.RefreshDuration()
	if r.Duration != "4h 15m" {
		t.Fatalf("duration = %q, want 4h 15m", r.Duration)
	}
}
