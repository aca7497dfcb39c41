package domain

import (
	"fmt"
	"sync"
	"testing"
)

func TestFindingSetConcurrentAppend(t *testing.T) {
	t.Parallel()

	fs := NewFindingSet()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				fs.Append(Finding{
					Target:   fmt.Sprintf("10.0.%d.%d", w, i),
					Category: CategoryHost,
				})
			}
		}(w)
	}
	wg.Wait()

	if got := fs.Len(); got != 800 {
		t.Fatalf("lost appends: got %d, want 800", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	fs := NewFindingSet()
	fs.Append(Finding{Target: "a", Category: CategoryHost})

	snap := fs.Snapshot()
	snap[0].Target = "mutated"

	if fs.Snapshot()[0].Target != "a" {
		t.Fatal("snapshot mutation leaked into the set")
	}
}

func TestByTarget(t *testing.T) {
	t.Parallel()

	fs := NewFindingSet()
	fs.Append(
		Finding{Target: "10.0.0.1", Category: CategoryHost},
		Finding{Target: "10.0.0.1", Category: CategoryOpenPort},
		Finding{Target: "10.0.0.2", Category: CategoryHost},
	)

	byTarget := fs.ByTarget()
	if len(byTarget) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(byTarget))
	}
	if len(byTarget["10.0.0.1"]) != 2 {
		t.Fatalf("expected 2 findings for 10.0.0.1, got %d", len(byTarget["10.0.0.1"]))
	}
}

func TestCountByCategory(t *testing.T) {
	t.Parallel()

	fs := NewFindingSet()
	fs.Append(
		Finding{Category: CategoryOpenPort, SeverityHint: SeverityLow},
		Finding{Category: CategoryTLSIssue, SeverityHint: SeverityHigh},
		Finding{Category: CategoryOpenPort, SeverityHint: SeverityLow},
		Finding{Category: CategoryTLSIssue, SeverityHint: SeverityMedium},
		Finding{Category: CategoryHost, SeverityHint: SeverityInfo},
	)

	table := fs.CountByCategory()
	if len(table) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(table))
	}

	// First-seen order is preserved.
	if table[0].Category != CategoryOpenPort || table[1].Category != CategoryTLSIssue {
		t.Fatalf("category order lost: %+v", table)
	}
	if table[0].Count != 2 || table[0].Low != 2 {
		t.Fatalf("open_port counts wrong: %+v", table[0])
	}
	if table[1].Count != 2 || table[1].High != 1 || table[1].Medium != 1 {
		t.Fatalf("tls_issue counts wrong: %+v", table[1])
	}
	if table[2].Count != 1 || table[2].High+table[2].Medium+table[2].Low != 0 {
		t.Fatalf("info severity must not count toward buckets: %+v", table[2])
	}
}
