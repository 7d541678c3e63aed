package labreport

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Lab reports"

var exportHeaders = []string{
	"Report ID", "Product", "Batch No", "Status", "Submitted By", "Submitted At",
	"Approved By", "Approved At", "Parameter", "Value", "Unit",
}

// Export renders the reports matching f as an xlsx workbook, one row per
// stored value (reports without values get a single row). The caller must
// Close the returned file.
func (e *Engine) Export(ctx context.Context, f Filter) (*excelize.File, string, error) {
	f.Page, f.PageSize = 0, 0
	page, err := e.List(ctx, f)
	if err != nil {
		return nil, "", err
	}

	x := excelize.NewFile()
	if err := x.SetSheetName("Sheet1", exportSheet); err != nil {
		x.Close()
		return nil, "", err
	}
	header, _ := x.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		x.SetCellValue(exportSheet, cell, h)
		x.SetCellStyle(exportSheet, cell, cell, header)
	}

	row := 2
	for _, r := range page.Results {
		base := []interface{}{
			r.ID, r.ProductName, r.BatchNo, string(r.Status),
			deref(r.SubmittedByUsername), r.SubmittedAt.Format(time.RFC3339),
			deref(r.ApprovedByUsername), formatTime(r.ApprovedAt),
		}
		values := r.ParameterValues
		if len(values) == 0 {
			values = []ValueView{{}}
		}
		for _, v := range values {
			cells := append(append([]interface{}{}, base...), v.ParameterName, v.Value, deref(v.Unit))
			start, _ := excelize.CoordinatesToCellName(1, row)
			if err := x.SetSheetRow(exportSheet, start, &cells); err != nil {
				x.Close()
				return nil, "", err
			}
			row++
		}
	}

	widths := []float64{38, 20, 14, 10, 16, 22, 16, 22, 20, 14, 8}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		x.SetColWidth(exportSheet, col, col, w)
	}

	name := fmt.Sprintf("lab_reports_%s.xlsx", e.now().Format("20060102_150405"))
	return x, name, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
