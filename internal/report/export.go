// Package report renders the alert log for operators: XLSX and PDF exports
// built directly from the durable CSV records.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"aquawatch/internal/dispatch"
)

// BuildAlertsXLSX renders the alert log as a workbook.
func BuildAlertsXLSX(records []dispatch.Record, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	alertsSheet := "alerts"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(alertsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Leak Alert Log")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", generatedAt.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Alerts")
	_ = f.SetCellValue(summarySheet, "B4", len(records))

	_ = f.SetCellValue(alertsSheet, "A1", "Timestamp")
	_ = f.SetCellValue(alertsSheet, "B1", "Device")
	_ = f.SetCellValue(alertsSheet, "C1", "Flow Rate (L/min)")
	_ = f.SetCellValue(alertsSheet, "D1", "Water Level (m)")
	_ = f.SetCellValue(alertsSheet, "E1", "Temperature (C)")
	_ = f.SetCellValue(alertsSheet, "F1", "Status")
	for i, record := range records {
		row := i + 2
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("A%d", row), record.Timestamp)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("B%d", row), record.DeviceID)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("C%d", row), record.FlowRate)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("D%d", row), record.WaterLevel)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("E%d", row), record.Temperature)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("F%d", row), record.Status)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertsPDF renders the alert log as a minimal PDF table.
func BuildAlertsPDF(records []dispatch.Record, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Leak Alert Log")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alerts: %d", len(records)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(42, 6, "Timestamp", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Device", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Flow (L/min)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Level (m)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Temp (C)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, record := range records {
		pdf.CellFormat(42, 6, record.Timestamp, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, record.DeviceID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, record.FlowRate, "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, record.WaterLevel, "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, record.Temperature, "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 6, record.Status, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
