package display

import (
	"testing"

	"yfitg/scout/internal/domain"
)

func TestStatusLineCoversEveryState(t *testing.T) {
	t.Parallel()

	states := []domain.RunState{
		domain.StateIdle,
		domain.StateValidating,
		domain.StateScanning,
		domain.StateSummarizing,
		domain.StateReporting,
		domain.StateUploading,
		domain.StateComplete,
		domain.StateAborted,
		domain.StateFailed,
	}

	seen := make(map[string]domain.RunState)
	for _, s := range states {
		line := StatusLine(s)
		if line == "" {
			t.Errorf("state %s has no status line", s)
		}
		if prev, dup := seen[line]; dup {
			t.Errorf("states %s and %s share the line %q", prev, s, line)
		}
		seen[line] = s
	}
}

func TestStatusLineUnknownState(t *testing.T) {
	t.Parallel()

	if got := StatusLine(domain.RunState("MYSTERY")); got != "MYSTERY" {
		t.Fatalf("unknown state should echo itself, got %q", got)
	}
}
