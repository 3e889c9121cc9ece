package apihttp

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alarmapp "unified-nms/internal/alarms/application"
	alarms "unified-nms/internal/alarms/domain"
	"unified-nms/internal/observability/metrics"
)

// ExportHandler serves alarm list exports.
type ExportHandler struct {
	engine *alarmapp.Engine
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(engine *alarmapp.Engine) (*ExportHandler, error) {
	if engine == nil {
		return nil, errors.New("export handler: nil engine")
	}
	return &ExportHandler{engine: engine}, nil
}

// ServeHTTP handles GET /api/v1/alarms/export.{xlsx,pdf}.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var format string
	switch r.URL.Path {
	case "/api/v1/alarms/export.xlsx":
		format = "xlsx"
	case "/api/v1/alarms/export.pdf":
		format = "pdf"
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	start := time.Now()
	list, err := h.engine.List(r.Context(), alarms.Filter{Limit: 1000})
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(start))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var payload []byte
	switch format {
	case "xlsx":
		payload, err = BuildAlarmsXLSX(list)
	case "pdf":
		payload, err = BuildAlarmsPDF(list)
	}
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(start))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(start))

	switch format {
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="alarms.xlsx"`)
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="alarms.pdf"`)
	}
	_, _ = w.Write(payload)
}

// BuildAlarmsXLSX renders the alarm list as a spreadsheet.
func BuildAlarmsXLSX(list []alarms.Alarm) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "alarms"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Alarm ID", "Device", "Category", "Severity", "State", "Message", "First Seen", "Last Seen", "Occurrences"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, alarm := range list {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), alarm.AlarmID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), alarm.DeviceID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), alarm.Category)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), alarm.Severity)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), alarm.State)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), alarm.Message)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), alarm.FirstSeen.Format(time.RFC3339))
		_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", row), alarm.LastSeen.Format(time.RFC3339))
		_ = f.SetCellValue(sheet, fmt.Sprintf("I%d", row), alarm.OccurrenceCount)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlarmsPDF renders the alarm list as a PDF table.
func BuildAlarmsPDF(list []alarms.Alarm) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Alarm Report")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(45, 6, "Device", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Category", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "State", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "First Seen", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Last Seen", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, alarm := range list {
		pdf.CellFormat(45, 6, alarm.DeviceID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, alarm.Category, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, alarm.Severity, "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, alarm.State, "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, alarm.FirstSeen.Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, alarm.LastSeen.Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", alarm.OccurrenceCount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
