package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

// TestContextRoundTrip verifies a logger stored in a context is returned by FromContext.
func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	ctx := WithLogger(context.Background(), logger)

	got := FromContext(ctx)
	if got != logger {
		t.Fatal("FromContext returned a different logger than WithLogger stored")
	}

	got.Info("hello", "story", "US-1")
	if !strings.Contains(buf.String(), "story=US-1") {
		t.Errorf("expected log output to contain attribute, got %q", buf.String())
	}
}

// TestFromContextFallback verifies a bare context yields a usable logger.
func TestFromContextFallback(t *testing.T) {
	got := FromContext(context.Background())
	if got == nil {
		t.Fatal("FromContext returned nil for a context without a logger")
	}
}

// TestVerboseLevels verifies debug records are filtered unless verbose is set.
func TestVerboseLevels(t *testing.T) {
	tests := []struct {
		name      string
		verbose   bool
		wantDebug bool
	}{
		{name: "default hides debug", verbose: false, wantDebug: false},
		{name: "verbose shows debug", verbose: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(&buf, tt.verbose)

			logger.Debug("cooldown elapsed")

			got := strings.Contains(buf.String(), "cooldown elapsed")
			if got != tt.wantDebug {
				t.Errorf("debug record present = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}
