package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/models"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"github.com/sirupsen/logrus"
)

// ReminderSummary reports what one reminder pass dispatched.
type ReminderSummary struct {
	RanAt            time.Time      `json:"ran_at"`
	InWindow         bool           `json:"in_window"`
	Skipped          bool           `json:"skipped"`
	RentDue          DispatchResult `json:"rent_due"`
	MissingReadings  DispatchResult `json:"missing_readings"`
	MeterPreparation DispatchResult `json:"meter_preparation"`
}

// InReminderWindow reports whether now (UTC) falls in the monthly reminder
// window: the last three days of a month or the first three of the next.
func InReminderWindow(now time.Time) bool {
	now = now.UTC()
	return IsLastThreeDays(now) || now.Day() <= 3
}

// IsLastThreeDays reports whether now (UTC) is within the month's final
// three days, handling short months by computing the month's actual length.
func IsLastThreeDays(now time.Time) bool {
	now = now.UTC()
	lastDay := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return now.Day() >= lastDay-2
}

// TenantsOnPendingLedgers selects the tenants whose property carries a
// pending ledger. Both the rent-due and meter-preparation pushes target
// exactly this set; settled tenants get neither.
func TenantsOnPendingLedgers(tenants []*models.User, latestPending map[string]*models.BillingLedger) []*models.User {
	selected := []*models.User{}
	for _, tenant := range tenants {
		if _, ok := latestPending[utils.RefTerminalID(tenant.PropertyID)]; ok {
			selected = append(selected, tenant)
		}
	}
	return selected
}

// RunMonthlyReminders dispatches the cycle-boundary pushes: rent-due to
// tenants with a pending ledger, missing-reading nudges to owners, and
// meter-preparation notices to those same tenants in the closing days of
// the month.
// A Redis key dedupes the pass per UTC day so retried cron deliveries do
// not double-notify; without Redis every delivery runs. A forced run clears
// the marker and dispatches regardless of the window.
func RunMonthlyReminders(ctx context.Context, now time.Time, force bool) (*ReminderSummary, error) {
	logger := config.GetLogger()
	now = now.UTC()
	summary := &ReminderSummary{RanAt: now, InWindow: InReminderWindow(now)}

	if !summary.InWindow && !force {
		summary.Skipped = true
		return summary, nil
	}

	dedupeKey := "reminders:" + now.Format("2006-01-02")
	if force {
		// A forced run always dispatches; clear today's marker first.
		if err := config.RemoveRedisKey(dedupeKey); err != nil {
			logger.WithFields(logrus.Fields{"key": dedupeKey, "error": err.Error()}).Warn("reminder dedupe key not cleared")
		}
	}
	if _, exists, err := config.GetRedisValue(dedupeKey); err == nil && exists {
		logger.WithFields(logrus.Fields{"key": dedupeKey}).Info("reminders already ran today")
		summary.Skipped = true
		return summary, nil
	}

	pending, err := models.ListPendingLedgers(ctx)
	if err != nil {
		return nil, err
	}
	latestPending := models.LatestLedgerByProperty(pending)

	tenants, err := models.ListUsersByRole(ctx, models.RoleTenant)
	if err != nil {
		return nil, err
	}
	owners, err := models.ListUsersByRole(ctx, models.RoleOwner)
	if err != nil {
		return nil, err
	}

	rentDueTenants := TenantsOnPendingLedgers(tenants, latestPending)
	summary.RentDue = DispatchToUsers(ctx, rentDueTenants,
		"Rent due",
		fmt.Sprintf("Your rent for %s is pending. Please pay at your earliest convenience.", utils.MonthYearLabel(now)),
		map[string]string{"kind": "rent_due"})

	// Owners with a current ledger that has no reading entered yet.
	missing := 0
	for _, ledger := range latestPending {
		if !ledger.CurrentMeterReading.IsPositive() {
			missing++
		}
	}
	if missing > 0 {
		summary.MissingReadings = DispatchToUsers(ctx, owners,
			"Meter readings pending",
			fmt.Sprintf("%d properties have no meter reading for %s yet.", missing, utils.MonthYearLabel(now)),
			map[string]string{"kind": "missing_readings"})
	}

	// Tenants on a pending ledger are told to note their meter only while
	// the month is closing.
	if IsLastThreeDays(now) {
		summary.MeterPreparation = DispatchToUsers(ctx, rentDueTenants,
			"Meter reading time",
			"The billing month is ending. Please note your current meter reading.",
			map[string]string{"kind": "meter_preparation"})
	}

	if err := config.SetRedisValue(dedupeKey, now.Format(time.RFC3339), 48*time.Hour); err != nil {
		logger.WithFields(logrus.Fields{"key": dedupeKey, "error": err.Error()}).Warn("reminder dedupe key not set")
	}

	logger.WithFields(logrus.Fields{
		"rent_due_sent":  summary.RentDue.SentCount,
		"missing_owners": summary.MissingReadings.SentCount,
		"meter_prep":     summary.MeterPreparation.SentCount,
	}).Info("monthly reminders dispatched")

	return summary, nil
}
