package scope

import (
	"errors"
	"testing"

	"yfitg/scout/internal/domain"

	log "github.com/sirupsen/logrus"
)

func testLog() *log.Entry {
	l := log.New()
	l.SetLevel(log.PanicLevel)
	return log.NewEntry(l)
}

func TestNewValidatorRejectsBadAllowList(t *testing.T) {
	t.Parallel()

	if _, err := NewValidator(testLog(), nil, 1024); err == nil {
		t.Fatal("expected error for empty allow-list")
	}
	if _, err := NewValidator(testLog(), []string{"not-a-cidr"}, 1024); err == nil {
		t.Fatal("expected error for malformed allow-list entry")
	}
}

func TestValidatePartitionsEveryEntry(t *testing.T) {
	t.Parallel()

	v, err := NewValidator(testLog(), []string{"192.168.0.0/16", "10.0.0.0/8"}, 1024)
	if err != nil {
		t.Fatal(err)
	}

	req := domain.ScopeRequest{
		CIDRs: []string{
			"192.168.1.0/24", // inside allow-list
			"10.10.10.0/24",  // inside allow-list
			"8.8.8.0/24",     // public space
			"garbage",        // unparseable
		},
		HTTPHosts: []string{
			"http://192.168.1.10:8080/admin", // IP literal inside scope
			"http://example.com",             // hostname
			"172.16.0.5",                     // IP literal outside this allow-list
		},
	}

	spec, err := v.Validate(req)
	if err != nil {
		t.Fatal(err)
	}

	// Every requested entry must appear in the spec, allowed or rejected.
	if got := len(spec.CIDRs); got != len(req.CIDRs) {
		t.Fatalf("expected %d CIDR entries, got %d", len(req.CIDRs), got)
	}
	if got := len(spec.HTTPHosts); got != len(req.HTTPHosts) {
		t.Fatalf("expected %d host entries, got %d", len(req.HTTPHosts), got)
	}

	allowed := spec.AllowedCIDRs()
	if len(allowed) != 2 || allowed[0] != "192.168.1.0/24" || allowed[1] != "10.10.10.0/24" {
		t.Fatalf("unexpected allowed CIDRs: %v", allowed)
	}

	for _, e := range spec.CIDRs[2:] {
		if e.Status != domain.ScopeRejected {
			t.Errorf("entry %q should be rejected", e.Value)
		}
		if e.Note == "" {
			t.Errorf("rejected entry %q has no audit note", e.Value)
		}
	}

	hosts := spec.AllowedHTTPHosts()
	if len(hosts) != 1 || hosts[0] != "http://192.168.1.10:8080/admin" {
		t.Fatalf("unexpected allowed hosts: %v", hosts)
	}
	if spec.HTTPHosts[1].Status != domain.ScopeRejected {
		t.Error("hostname entry should be rejected")
	}
}

func TestValidateAllowListNotWidenedByRequest(t *testing.T) {
	t.Parallel()

	// Device allow-list covers only one /24; the portal asks for a sibling.
	v, err := NewValidator(testLog(), []string{"192.168.50.0/24"}, 1024)
	if err != nil {
		t.Fatal(err)
	}

	spec, err := v.Validate(domain.ScopeRequest{CIDRs: []string{"192.168.51.0/24"}})
	if !errors.Is(err, domain.ErrScopeEmpty) {
		t.Fatalf("expected ErrScopeEmpty, got %v", err)
	}
	if len(spec.AllowedCIDRs()) != 0 {
		t.Fatal("sibling block must not be allowed")
	}
}

func TestValidateEmptyScope(t *testing.T) {
	t.Parallel()

	v, err := NewValidator(testLog(), []string{"192.168.0.0/16"}, 1024)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := v.Validate(domain.ScopeRequest{}); !errors.Is(err, domain.ErrScopeEmpty) {
		t.Fatalf("expected ErrScopeEmpty, got %v", err)
	}
	if _, err := v.Validate(domain.ScopeRequest{CIDRs: []string{"1.2.3.0/24"}}); !errors.Is(err, domain.ErrScopeEmpty) {
		t.Fatalf("expected ErrScopeEmpty when everything is rejected, got %v", err)
	}
}

func TestValidateHostBudget(t *testing.T) {
	t.Parallel()

	v, err := NewValidator(testLog(), []string{"10.0.0.0/8"}, 300)
	if err != nil {
		t.Fatal(err)
	}

	spec, err := v.Validate(domain.ScopeRequest{
		CIDRs: []string{
			"10.0.1.0/24", // 256 hosts, fits
			"10.0.2.0/24", // 256 more, exceeds the remaining 44
			"10.0.3.10",   // bare address, 1 host, still fits
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if spec.CIDRs[0].Status != domain.ScopeAllowed {
		t.Error("first /24 should fit the budget")
	}
	if spec.CIDRs[1].Status != domain.ScopeRejected {
		t.Error("second /24 should exceed the budget")
	}
	if spec.CIDRs[2].Status != domain.ScopeAllowed {
		t.Error("single address should fit the remaining budget")
	}
}

func TestValidateBareAddressAsSlash32(t *testing.T) {
	t.Parallel()

	v, err := NewValidator(testLog(), []string{"192.168.0.0/16"}, 1024)
	if err != nil {
		t.Fatal(err)
	}

	spec, err := v.Validate(domain.ScopeRequest{CIDRs: []string{"192.168.1.77"}})
	if err != nil {
		t.Fatal(err)
	}
	if spec.CIDRs[0].Status != domain.ScopeAllowed {
		t.Fatalf("bare in-scope address rejected: %s", spec.CIDRs[0].Note)
	}
}
