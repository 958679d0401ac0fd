package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
)

const (
	headerFill = "4472C4"
	moneyFmt   = "#,##0.00"
)

// ExcelWriter renders report sheets as xlsx workbooks
type ExcelWriter struct {
	fontName string
	logger   *zap.Logger
}

// NewExcelWriter creates a writer. fontName, when set, becomes the workbook
// default font so CJK text renders in viewers without fallback fonts.
func NewExcelWriter(fontName string, logger *zap.Logger) *ExcelWriter {
	return &ExcelWriter{fontName: fontName, logger: logger}
}

// Write encodes sheet into xlsx bytes
func (w *ExcelWriter) Write(sheet port.ReportSheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if w.fontName != "" {
		if err := f.SetDefaultFont(w.fontName); err != nil {
			w.logger.Warn("Failed to set default font", zap.String("font", w.fontName), zap.Error(err))
		}
	}

	if err := f.SetSheetName("Sheet1", sheet.SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	name := sheet.SheetName

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 12},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	numFmt := moneyFmt
	moneyStyle, err := f.NewStyle(&excelize.Style{
		CustomNumFmt: &numFmt,
		Alignment:    &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create money style: %w", err)
	}

	for i, header := range sheet.Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(name, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(name, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to style header %s: %w", cell, err)
		}
	}

	for r, row := range sheet.Rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(name, cell, value); err != nil {
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
			if c == sheet.MoneyColumn {
				if err := f.SetCellStyle(name, cell, cell, moneyStyle); err != nil {
					return nil, fmt.Errorf("failed to style cell %s: %w", cell, err)
				}
			}
		}
	}

	for i, width := range sheet.Widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(name, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set width of %s: %w", col, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}

	w.logger.Debug("Report encoded", zap.String("sheet", name), zap.Int("rows", len(sheet.Rows)))
	return buf.Bytes(), nil
}

var _ port.ReportWriter = (*ExcelWriter)(nil)
