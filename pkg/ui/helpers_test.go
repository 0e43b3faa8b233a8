package ui

import (
	"strings"
	"testing"
	"time"
)

func TestFormatTimeRel(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, "never"},
		{"just now", now.Add(-500 * time.Millisecond), "now"},
		{"seconds", now.Add(-30 * time.Second), "30s ago"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
		{"days", now.Add(-49 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTimeRel(tt.t); got != tt.want {
				t.Errorf("FormatTimeRel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	got := truncate("a-long-identifier", 8)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncate() = %q, want ellipsis suffix", got)
	}
	if got := truncate("日本語テキスト", 5); len([]rune(got)) == 0 {
		t.Error("wide rune truncation returned empty string")
	}
}

func TestPadRight(t *testing.T) {
	if got := padRight("ab", 5); got != "ab   " {
		t.Errorf("padRight = %q", got)
	}
	if got := padRight("abcdef", 3); got != "abcdef" {
		t.Errorf("padRight should not trim: %q", got)
	}
}

func TestFidelityBar(t *testing.T) {
	full := fidelityBar(100, 10)
	if strings.Count(full, "█") != 10 {
		t.Errorf("full bar = %q", full)
	}
	empty := fidelityBar(10, 10)
	if strings.Count(empty, "█") != 0 {
		t.Errorf("floor bar = %q", empty)
	}
	mid := fidelityBar(55, 10)
	filled := strings.Count(mid, "█")
	if filled != 5 {
		t.Errorf("mid bar filled %d cells, want 5: %q", filled, mid)
	}
}
