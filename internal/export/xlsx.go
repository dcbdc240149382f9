// Package export writes the analyst report as a formatted Excel workbook.
package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/doge-tracker/internal/model"
	"github.com/sells-group/doge-tracker/internal/report"
)

const currencyFormat = "#,##0.00"

// WriteXLSX writes report rows to an Excel file with a styled header and
// currency formatting on the money columns.
func WriteXLSX(path, sheetName string, rows []report.Row) error {
	if sheetName == "" {
		sheetName = "DOGE Contracts"
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", sheetName)
	}

	headerStyle := xlsx.NewStyle()
	headerStyle.Font.Bold = true
	headerStyle.Font.Color = "FFFFFFFF"
	headerStyle.Fill = *xlsx.NewFill("solid", "FF2F75B5", "FF2F75B5")
	headerStyle.ApplyFont = true
	headerStyle.ApplyFill = true

	headerRow := sheet.AddRow()
	for _, name := range report.Header() {
		cell := headerRow.AddCell()
		cell.SetString(name)
		cell.SetStyle(headerStyle)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.PIID)
		row.AddCell().SetString(r.BuyingOrg)
		row.AddCell().SetString(r.Incumbent)
		setMoney(row.AddCell(), r.TCV)
		row.AddCell().SetString(r.Description)
		row.AddCell().SetString(r.Status)
		row.AddCell().SetString(r.FPDSLink)
		deleted := ""
		if r.DeletedOn != nil {
			deleted = r.DeletedOn.Format(model.DateFormat)
		}
		row.AddCell().SetString(deleted)
		setMoney(row.AddCell(), r.Savings)
	}

	// Wide columns for descriptions and links.
	sheet.SetColWidth(0, 2, 24)
	sheet.SetColWidth(3, 3, 16)
	sheet.SetColWidth(4, 4, 60)
	sheet.SetColWidth(5, 7, 18)
	sheet.SetColWidth(8, 8, 16)

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}

	zap.L().Info("exported workbook",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
	)
	return nil
}

// setMoney writes a currency cell, or leaves it empty for unknown amounts so
// the sheet never shows a fabricated zero.
func setMoney(cell *xlsx.Cell, m model.Money) {
	if !m.Known {
		cell.SetString("")
		return
	}
	cell.SetFloatWithFormat(m.Amount, currencyFormat)
}
