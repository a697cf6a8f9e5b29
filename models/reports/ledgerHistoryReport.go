package reports

import (
	"context"
	"fmt"
	"io"
	"strings"

	"bitbucket.org/mmdatafocus/rentroll_backend/models"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// LedgerHistoryRow is one exported line: a billing-cycle record joined with
// its property's charges so the sheet is readable standalone.
type LedgerHistoryRow struct {
	PropertyId       string
	StreetName       string
	MonthYear        string
	PrevReading      string
	CurrentReading   string
	Consumed         string
	ElectricityRate  string
	ElectricityTotal string
	RentAmount       string
	WaterCharge      string
	PaymentStatus    string
	PaidAt           string
}

// GetLedgerHistoryReport builds rows for the given properties, oldest cycle
// first per property, preserving property input order.
func GetLedgerHistoryReport(ctx context.Context, properties []*models.Property) ([]*LedgerHistoryRow, error) {
	rows := []*LedgerHistoryRow{}
	for _, property := range properties {
		ledgers, err := models.ListLedgersForProperty(ctx, property.ID)
		if err != nil {
			return nil, err
		}
		for _, ledger := range ledgers {
			rows = append(rows, buildLedgerHistoryRow(property, ledger))
		}
	}
	return rows, nil
}

func buildLedgerHistoryRow(property *models.Property, ledger *models.BillingLedger) *LedgerHistoryRow {
	consumed := ledger.CurrentMeterReading.Sub(ledger.PrevMeterReading)
	if consumed.IsNegative() {
		consumed = decimal.Zero
	}

	row := &LedgerHistoryRow{
		PropertyId:       property.ID,
		StreetName:       property.StreetName,
		MonthYear:        ledger.MonthYear,
		PrevReading:      ledger.PrevMeterReading.String(),
		CurrentReading:   ledger.CurrentMeterReading.String(),
		Consumed:         consumed.String(),
		ElectricityRate:  property.ElectricityRate.String(),
		ElectricityTotal: ledger.ElectricityTotal.String(),
		RentAmount:       property.RentAmount.String(),
		WaterCharge:      property.WaterCharge.String(),
		PaymentStatus:    string(ledger.PaymentStatus),
	}
	if ledger.PaidAt != nil {
		row.PaidAt = ledger.PaidAt.UTC().Format("2006-01-02 15:04")
	}
	return row
}

var ledgerHistoryHeadings = []string{
	"PropertyId", "StreetName", "MonthYear",
	"PrevReading", "CurrentReading", "Consumed",
	"ElectricityRate", "ElectricityTotal",
	"RentAmount", "WaterCharge",
	"PaymentStatus", "PaidAt",
}

// ExportLedgerHistoryXlsx writes the report as an xlsx workbook.
func ExportLedgerHistoryXlsx(w io.Writer, rows []*LedgerHistoryRow) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "LedgerHistory"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	for i, h := range ledgerHistoryHeadings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheetName, cell, h)
	}

	for rowNo, row := range rows {
		values := []interface{}{
			row.PropertyId, row.StreetName, row.MonthYear,
			row.PrevReading, row.CurrentReading, row.Consumed,
			row.ElectricityRate, row.ElectricityTotal,
			row.RentAmount, row.WaterCharge,
			row.PaymentStatus, row.PaidAt,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowNo+2)
			if err != nil {
				return err
			}
			f.SetCellValue(sheetName, cell, value)
		}
	}

	return f.Write(w)
}

// LedgerHistoryFileName builds the attachment name from the owner's display
// name and the current cycle label.
func LedgerHistoryFileName(ownerName, monthYear string) string {
	name := strings.TrimSpace(ownerName)
	if name == "" {
		name = "owner"
	}
	return utils.SanitizeFileName(fmt.Sprintf("ledger_history_%s_%s.xlsx", name, monthYear))
}
