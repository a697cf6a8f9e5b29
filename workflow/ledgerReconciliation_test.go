package workflow

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/rentroll_backend/models"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"github.com/shopspring/decimal"
)

type fakeLedgerStore struct {
	rate    decimal.Decimal
	current *models.BillingLedger
	amends  int
	creates int
	failOn  string
}

func (s *fakeLedgerStore) PropertyRate(ctx context.Context, propertyId string) decimal.Decimal {
	return s.rate
}

func (s *fakeLedgerStore) CurrentLedger(ctx context.Context, propertyId string) (*models.BillingLedger, error) {
	if s.failOn == "current" {
		return nil, errors.New("db down")
	}
	if s.current == nil {
		return nil, utils.ErrorRecordNotFound
	}
	return s.current, nil
}

func (s *fakeLedgerStore) AmendLedger(ctx context.Context, ledger *models.BillingLedger) error {
	if s.failOn == "amend" {
		return errors.New("db down")
	}
	s.amends++
	s.current = ledger
	return nil
}

func (s *fakeLedgerStore) CreateLedger(ctx context.Context, ledger *models.BillingLedger) error {
	if s.failOn == "create" {
		return errors.New("db down")
	}
	s.creates++
	s.current = ledger
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeElectricityCharge(t *testing.T) {
	consumed, total := ComputeElectricityCharge(dec("1200"), dec("1250"), dec("8"))
	if !consumed.Equal(dec("50")) {
		t.Fatalf("consumed = %s, want 50", consumed)
	}
	if !total.Equal(dec("400")) {
		t.Fatalf("total = %s, want 400", total)
	}
}

func TestComputeElectricityCharge_LowerReadingClampsToZero(t *testing.T) {
	consumed, total := ComputeElectricityCharge(dec("1250"), dec("1200"), dec("8"))
	if !consumed.IsZero() || !total.IsZero() {
		t.Fatalf("consumed = %s total = %s, want zero", consumed, total)
	}
}

func TestReconcileMeterReading_FirstReadingCreatesLedger(t *testing.T) {
	store := &fakeLedgerStore{rate: dec("8")}

	ledger, err := ReconcileMeterReading(context.Background(), store, "prop-1", dec("1250"))
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if store.creates != 1 || store.amends != 0 {
		t.Fatalf("creates = %d amends = %d, want 1/0", store.creates, store.amends)
	}
	if !ledger.PrevMeterReading.IsZero() {
		t.Fatalf("prev = %s, want 0", ledger.PrevMeterReading)
	}
	if !ledger.CurrentMeterReading.Equal(dec("1250")) {
		t.Fatalf("current = %s, want 1250", ledger.CurrentMeterReading)
	}
	if !ledger.ElectricityTotal.Equal(dec("10000")) {
		t.Fatalf("total = %s, want 10000", ledger.ElectricityTotal)
	}
	if ledger.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("status = %s, want pending", ledger.PaymentStatus)
	}
}

func TestReconcileMeterReading_AmendsInPlace(t *testing.T) {
	store := &fakeLedgerStore{
		rate: dec("8"),
		current: &models.BillingLedger{
			ID:                  "led-1",
			PropertyID:          "prop-1",
			MonthYear:           "January 2026",
			PrevMeterReading:    dec("1150"),
			CurrentMeterReading: dec("1200"),
			ElectricityTotal:    dec("400"),
		},
	}

	ledger, err := ReconcileMeterReading(context.Background(), store, "prop-1", dec("1250"))
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if store.amends != 1 || store.creates != 0 {
		t.Fatalf("amends = %d creates = %d, want 1/0", store.amends, store.creates)
	}
	if ledger.ID != "led-1" {
		t.Fatal("reconcile must amend the existing ledger, not append")
	}
	if !ledger.PrevMeterReading.Equal(dec("1150")) {
		t.Fatalf("prev = %s, want unchanged 1150", ledger.PrevMeterReading)
	}
	if !ledger.CurrentMeterReading.Equal(dec("1250")) {
		t.Fatalf("current = %s, want 1250", ledger.CurrentMeterReading)
	}
	if !ledger.ElectricityTotal.Equal(dec("800")) {
		t.Fatalf("total = %s, want 100 * 8 = 800", ledger.ElectricityTotal)
	}
	if ledger.MonthYear != "January 2026" {
		t.Fatalf("month_year = %q, an amend must not move the cycle label", ledger.MonthYear)
	}
}

func TestReconcileMeterReading_ResubmissionCorrectsSameCycle(t *testing.T) {
	store := &fakeLedgerStore{
		rate: dec("6"),
		current: &models.BillingLedger{
			ID:                  "led-1",
			PropertyID:          "prop-1",
			MonthYear:           "February 2026",
			PrevMeterReading:    dec("100"),
			CurrentMeterReading: dec("120"),
			ElectricityTotal:    dec("120"),
		},
	}

	ledger, err := ReconcileMeterReading(context.Background(), store, "prop-1", dec("150"))
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !ledger.PrevMeterReading.Equal(dec("100")) || !ledger.CurrentMeterReading.Equal(dec("150")) {
		t.Fatalf("readings = %s/%s, want 100/150", ledger.PrevMeterReading, ledger.CurrentMeterReading)
	}
	if !ledger.ElectricityTotal.Equal(dec("300")) {
		t.Fatalf("total = %s, want 50 * 6 = 300 against the stored baseline", ledger.ElectricityTotal)
	}
	if ledger.MonthYear != "February 2026" {
		t.Fatalf("month_year = %q, want February 2026", ledger.MonthYear)
	}
}

func TestReconcileMeterReading_MissingRateChargesZero(t *testing.T) {
	store := &fakeLedgerStore{rate: decimal.Zero}

	ledger, err := ReconcileMeterReading(context.Background(), store, "prop-1", dec("1250"))
	if err != nil {
		t.Fatalf("reconcile must not fail on a missing rate: %v", err)
	}
	if !ledger.ElectricityTotal.IsZero() {
		t.Fatalf("total = %s, want 0", ledger.ElectricityTotal)
	}
	if !ledger.CurrentMeterReading.Equal(dec("1250")) {
		t.Fatal("the reading itself must still be recorded")
	}
}

func TestReconcileMeterReading_NegativeReadingRejected(t *testing.T) {
	store := &fakeLedgerStore{rate: dec("8")}

	_, err := ReconcileMeterReading(context.Background(), store, "prop-1", dec("-5"))
	if !utils.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.creates != 0 && store.amends != 0 {
		t.Fatal("nothing must be written for an invalid reading")
	}
}

func TestReconcileMeterReading_StoreErrorPropagates(t *testing.T) {
	store := &fakeLedgerStore{rate: dec("8"), failOn: "current"}

	if _, err := ReconcileMeterReading(context.Background(), store, "prop-1", dec("1250")); err == nil {
		t.Fatal("expected store error to propagate")
	}
}
