package util

import (
	"testing"
	"time"
)

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		want  time.Duration
	}{
		{name: "unset", want: time.Minute},
		{name: "go duration", value: "90s", set: true, want: 90 * time.Second},
		{name: "bare seconds", value: "2.5", set: true, want: 2500 * time.Millisecond},
		{name: "invalid", value: "soon", set: true, want: time.Minute},
		{name: "empty", value: "", set: true, want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("AEO_TEST_DURATION", tt.value)
			}
			if got := GetEnvDuration("AEO_TEST_DURATION", time.Minute); got != tt.want {
				t.Fatalf("GetEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvIntAndBool(t *testing.T) {
	t.Setenv("AEO_TEST_INT", "7")
	t.Setenv("AEO_TEST_BAD_INT", "seven")
	t.Setenv("AEO_TEST_BOOL", "true")
	t.Setenv("AEO_TEST_BAD_BOOL", "yes")

	if got := GetEnvInt("AEO_TEST_INT", 1); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := GetEnvInt("AEO_TEST_BAD_INT", 1); got != 1 {
		t.Fatalf("expected default 1, got %d", got)
	}
	if !GetEnvBool("AEO_TEST_BOOL", false) {
		t.Fatalf("expected true")
	}
	if GetEnvBool("AEO_TEST_BAD_BOOL", false) {
		t.Fatalf("expected default false")
	}
}
