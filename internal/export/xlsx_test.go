package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/doge-tracker/internal/model"
	"github.com/sells-group/doge-tracker/internal/report"
)

func TestWriteXLSX(t *testing.T) {
	deleted := time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)
	rows := []report.Row{
		{
			PIID:      "A1",
			BuyingOrg: "GSA",
			Incumbent: "Acme",
			TCV:       model.KnownMoney(1234.56),
			Status:    "terminated",
			DeletedOn: &deleted,
			Savings:   model.KnownMoney(500),
		},
		{
			PIID:    "B2",
			TCV:     model.UnknownMoney(),
			Savings: model.UnknownMoney(),
		},
	}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteXLSX(path, "", rows))

	file, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)

	sheet := file.Sheets[0]
	assert.Equal(t, "DOGE Contracts", sheet.Name)
	require.Len(t, sheet.Rows, 3)

	header := sheet.Rows[0]
	require.Len(t, header.Cells, len(report.Header()))
	assert.Equal(t, "PIID", header.Cells[0].String())
	assert.Equal(t, "Total Contract Value (TCV)", header.Cells[3].String())

	first := sheet.Rows[1]
	assert.Equal(t, "A1", first.Cells[0].String())
	tcv, err := first.Cells[3].Float()
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, tcv, 0.001)
	assert.Equal(t, "2025-04-10", first.Cells[7].String())

	second := sheet.Rows[2]
	assert.Equal(t, "B2", second.Cells[0].String())
	assert.Equal(t, "", second.Cells[3].String(), "unknown amount stays empty, never zero")
}

func TestWriteXLSXEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteXLSX(path, "Sheet1", nil))

	file, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)
	assert.Equal(t, "Sheet1", file.Sheets[0].Name)
	assert.Len(t, file.Sheets[0].Rows, 1, "header only")
}
