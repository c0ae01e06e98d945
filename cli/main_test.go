package main

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{4*time.Minute + 5*time.Second, "4:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("a rather long title", 10); got != "a rathe..." {
		t.Errorf("truncate() = %q", got)
	}
}

func TestTopicsFromArgs(t *testing.T) {
	topics := topicsFromArgs([]string{"7", "3", "12"})
	want := []int64{7, 3, 12}
	if len(topics) != len(want) {
		t.Fatalf("topicsFromArgs() = %+v", topics)
	}
	for i, tp := range topics {
		if tp.ID != want[i] || tp.Order != i {
			t.Errorf("topics[%d] = %+v, want id %d order %d", i, tp, want[i], i)
		}
	}
}
