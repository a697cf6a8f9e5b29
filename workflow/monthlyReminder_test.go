package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func TestInReminderWindow(t *testing.T) {
	cases := []struct {
		when time.Time
		want bool
	}{
		{day(2026, time.January, 29), true},  // last three of a 31-day month
		{day(2026, time.January, 30), true},
		{day(2026, time.January, 31), true},
		{day(2026, time.February, 1), true},  // first three
		{day(2026, time.February, 3), true},
		{day(2026, time.February, 4), false},
		{day(2026, time.January, 15), false},
		{day(2026, time.February, 26), true},  // February 2026 has 28 days
		{day(2026, time.February, 25), false},
		{day(2024, time.February, 27), true},  // leap year, 29 days
		{day(2024, time.February, 26), false},
		{day(2026, time.April, 28), true}, // 30-day month
		{day(2026, time.April, 27), false},
	}
	for _, tc := range cases {
		if got := InReminderWindow(tc.when); got != tc.want {
			t.Fatalf("InReminderWindow(%s) = %v, want %v", tc.when.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestIsLastThreeDays(t *testing.T) {
	if IsLastThreeDays(day(2026, time.February, 1)) {
		t.Fatal("first of month is not in the closing days")
	}
	if !IsLastThreeDays(day(2026, time.February, 28)) {
		t.Fatal("last day of month must count")
	}
	// A non-UTC clock must not shift the window.
	ist := time.FixedZone("IST", 5*3600+1800)
	local := time.Date(2026, time.March, 1, 1, 0, 0, 0, ist) // Feb 28 19:30 UTC
	if !IsLastThreeDays(local) {
		t.Fatal("window must be evaluated in UTC")
	}
}

func TestTenantsOnPendingLedgers(t *testing.T) {
	pendingTenant := &models.User{ID: "t1", Role: models.RoleTenant, PropertyID: "prop-1"}
	pendingByRef := &models.User{ID: "t2", Role: models.RoleTenant, PropertyID: "properties/prop-1"}
	settledTenant := &models.User{ID: "t3", Role: models.RoleTenant, PropertyID: "prop-2"}
	unassigned := &models.User{ID: "t4", Role: models.RoleTenant}

	latestPending := map[string]*models.BillingLedger{
		"prop-1": {ID: "led-1", PropertyID: "prop-1"},
	}

	selected := TenantsOnPendingLedgers(
		[]*models.User{pendingTenant, pendingByRef, settledTenant, unassigned},
		latestPending,
	)
	if len(selected) != 2 {
		t.Fatalf("selected %d tenants, want 2", len(selected))
	}
	if selected[0].ID != "t1" || selected[1].ID != "t2" {
		t.Fatalf("unexpected selection: %s, %s", selected[0].ID, selected[1].ID)
	}
}
