package journal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX exports the journal as an Excel workbook with a trade sheet and
// a per-instrument summary sheet.
func (j *Journal) WriteXLSX(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const summarySheet = "Summary"

	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return err
	}

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"1F4E79"},
			Pattern: 1,
		},
	})
	if err != nil {
		return err
	}

	if err := j.writeTradesSheet(fx, tradesSheet, headerStyle); err != nil {
		return err
	}
	if err := j.writeSummarySheet(fx, summarySheet, headerStyle); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (j *Journal) writeTradesSheet(fx *excelize.File, sheet string, headerStyle int) error {
	headers := []string{"Instrument", "Side", "Quantity", "Entry Price", "Exit Price", "Entry Time", "Exit Time", "PnL", "Reason"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	end, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", end, headerStyle); err != nil {
		return err
	}

	for row, tr := range j.Trades() {
		values := []interface{}{
			tr.Instrument,
			tr.Side.String(),
			tr.Quantity,
			tr.EntryPrice,
			tr.ExitPrice,
			tr.EntryTime.Format("2006-01-02 15:04:05"),
			tr.ExitTime.Format("2006-01-02 15:04:05"),
			tr.PnL,
			string(tr.Reason),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (j *Journal) writeSummarySheet(fx *excelize.File, sheet string, headerStyle int) error {
	headers := []string{"Instrument", "Trades", "Winning", "PnL"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	end, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", end, headerStyle); err != nil {
		return err
	}

	summary := j.Summarize()
	row := 2
	for _, is := range summary.ByInstrument {
		values := []interface{}{is.Instrument, is.Trades, is.Winning, is.PnL}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		row++
	}

	totals := []interface{}{"TOTAL", summary.TotalTrades, summary.Winning, summary.TotalPnL}
	for col, v := range totals {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}
