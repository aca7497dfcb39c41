package domain

import "sync"

// FindingSet is the single merge point for tool runner output. Runners append
// from worker goroutines; everything else reads snapshots. Merging is
// associative, so completion order does not matter.
type FindingSet struct {
	mu       sync.Mutex
	findings []Finding
}

func NewFindingSet() *FindingSet {
	return &FindingSet{}
}

// Append records findings. Safe for concurrent use.
func (fs *FindingSet) Append(findings ...Finding) {
	fs.mu.Lock()
	fs.findings = append(fs.findings, findings...)
	fs.mu.Unlock()
}

// Snapshot returns a copy of all findings recorded so far.
func (fs *FindingSet) Snapshot() []Finding {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]Finding, len(fs.findings))
	copy(out, fs.findings)
	return out
}

// Len returns the number of recorded findings.
func (fs *FindingSet) Len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.findings)
}

// ByTarget partitions the current findings by target.
func (fs *FindingSet) ByTarget() map[string][]Finding {
	out := make(map[string][]Finding)
	for _, f := range fs.Snapshot() {
		out[f.Target] = append(out[f.Target], f)
	}
	return out
}

// CountByCategory builds the per-category count table used by the summary
// fallback and the report.
func (fs *FindingSet) CountByCategory() []CategoryCount {
	byCat := make(map[string]*CategoryCount)
	var order []string

	for _, f := range fs.Snapshot() {
		cc, ok := byCat[f.Category]
		if !ok {
			cc = &CategoryCount{Category: f.Category}
			byCat[f.Category] = cc
			order = append(order, f.Category)
		}
		cc.Count++
		switch f.SeverityHint {
		case SeverityHigh:
			cc.High++
		case SeverityMedium:
			cc.Medium++
		case SeverityLow:
			cc.Low++
		}
	}

	out := make([]CategoryCount, 0, len(order))
	for _, cat := range order {
		out = append(out, *byCat[cat])
	}
	return out
}
