package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"clinic/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Appointments"

var headers = []string{"ID", "Date", "Provider", "Service", "Customer", "Start", "End", "Status"}

// Build создает книгу с отчётом. Строки ожидаются уже отсортированными по дате приёма;
// первая строка каждого нового дня выделяется цветом.
func Build(rows []*models.ReportRow) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating style: %w", err)
	}
	dayStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating style: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle)

	prevDate := ""
	for i, r := range rows {
		row := i + 2
		values := []interface{}{
			r.AppointmentID, r.AppointmentDate, r.ProviderName, r.ServiceName,
			r.CustomerName, r.StartTime, r.EndTime, r.Status,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("error writing row %d: %w", row, err)
		}
		if r.AppointmentDate != prevDate {
			end, _ := excelize.CoordinatesToCellName(len(headers), row)
			_ = f.SetCellStyle(sheetName, start, end, dayStyle)
			prevDate = r.AppointmentDate
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 8)
	_ = f.SetColWidth(sheetName, "B", "B", 14)
	_ = f.SetColWidth(sheetName, "C", "E", 25)
	_ = f.SetColWidth(sheetName, "F", lastCol, 12)
	_ = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	return f, nil
}

// Write пишет xlsx в w, например в http.ResponseWriter.
func Write(w io.Writer, rows []*models.ReportRow) error {
	f, err := Build(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return nil
}

// Save сохраняет отчёт в dir и возвращает путь к файлу.
func Save(dir string, rows []*models.ReportRow, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := Build(rows)
	if err != nil {
		return "", err
	}
	defer f.Close()

	filePath := filepath.Join(dir, fmt.Sprintf("daily_report_%s.xlsx", now.Format("20060102_150405")))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return filePath, nil
}
