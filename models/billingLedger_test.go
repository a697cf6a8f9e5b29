package models

import (
	"testing"
	"time"
)

func ledgerAt(id, propertyId string, unix int64) *BillingLedger {
	return &BillingLedger{ID: id, PropertyID: propertyId, UpdatedAt: time.Unix(unix, 0)}
}

func TestLatestLedger_PicksGreatestUpdatedAt(t *testing.T) {
	ledgers := []*BillingLedger{
		ledgerAt("a", "p1", 100),
		ledgerAt("b", "p1", 300),
		ledgerAt("c", "p1", 200),
	}
	if got := LatestLedger(ledgers); got.ID != "b" {
		t.Fatalf("latest = %s, want b", got.ID)
	}
}

func TestLatestLedger_TieGoesToLastSeen(t *testing.T) {
	ledgers := []*BillingLedger{
		ledgerAt("a", "p1", 100),
		ledgerAt("b", "p1", 100),
		ledgerAt("c", "p1", 100),
	}
	// Equal timestamps reduce to the final element, every time.
	for i := 0; i < 10; i++ {
		if got := LatestLedger(ledgers); got.ID != "c" {
			t.Fatalf("tie-break must pick the last element, got %s", got.ID)
		}
	}
}

func TestLatestLedger_Empty(t *testing.T) {
	if got := LatestLedger(nil); got != nil {
		t.Fatalf("expected nil for no ledgers, got %+v", got)
	}
}

func TestLatestLedgerByProperty(t *testing.T) {
	ledgers := []*BillingLedger{
		ledgerAt("a", "p1", 100),
		ledgerAt("b", "billing_ledger/p1", 200), // ref form groups with p1
		ledgerAt("c", "p2", 50),
		ledgerAt("d", "", 300), // no resolvable property, dropped
	}

	latest := LatestLedgerByProperty(ledgers)
	if len(latest) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(latest))
	}
	if latest["p1"].ID != "b" {
		t.Fatalf("p1 latest = %s, want b", latest["p1"].ID)
	}
	if latest["p2"].ID != "c" {
		t.Fatalf("p2 latest = %s, want c", latest["p2"].ID)
	}
}
