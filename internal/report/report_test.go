package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/doge-tracker/internal/model"
)

func completeRecord(piid string) model.ContractRecord {
	deleted := time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)
	return model.ContractRecord{
		PIID:        piid,
		Agency:      "GSA",
		Vendor:      "Acme",
		Value:       model.KnownMoney(1000),
		Description: "widgets",
		FPDSStatus:  "terminated",
		FPDSLink:    "https://fpds.gov/view/123",
		DeletedDate: &deleted,
		Savings:     model.KnownMoney(250),
	}
}

func TestBuildKeepsCompleteRows(t *testing.T) {
	rows := Build([]model.ContractRecord{completeRecord("A1")})
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "A1", r.PIID)
	assert.Equal(t, "GSA", r.BuyingOrg)
	assert.Equal(t, "Acme", r.Incumbent)
	assert.Equal(t, model.KnownMoney(1000), r.TCV)
	assert.Equal(t, "https://fpds.gov/view/123", r.FPDSLink)
}

func TestBuildDropsIncompleteRows(t *testing.T) {
	noAgency := completeRecord("A1")
	noAgency.Agency = ""

	unknownValue := completeRecord("B2")
	unknownValue.Value = model.UnknownMoney()

	notDeleted := completeRecord("C3")
	notDeleted.DeletedDate = nil

	unknownSavings := completeRecord("D4")
	unknownSavings.Savings = model.UnknownMoney()

	rows := Build([]model.ContractRecord{
		noAgency, unknownValue, notDeleted, unknownSavings, completeRecord("E5"),
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "E5", rows[0].PIID)
}

func TestBuildZeroValueIsNotMissing(t *testing.T) {
	rec := completeRecord("A1")
	rec.Value = model.KnownMoney(0)
	rec.Savings = model.KnownMoney(0)

	rows := Build([]model.ContractRecord{rec})
	require.Len(t, rows, 1, "a confirmed zero is a value, not a gap")
}

func TestBuildBlanksPlaceholderLink(t *testing.T) {
	rec := completeRecord("A1")
	rec.FPDSLink = "https://fpds.gov"

	rows := Build([]model.ContractRecord{rec})
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].FPDSLink)
}

func TestRowCSVRow(t *testing.T) {
	rows := Build([]model.ContractRecord{completeRecord("A1")})
	require.Len(t, rows, 1)

	got := rows[0].CSVRow()
	require.Len(t, got, len(Header()))
	assert.Equal(t, "A1", got[0])
	assert.Equal(t, "1000", got[3])
	assert.Equal(t, "2025-04-10", got[7])
	assert.Equal(t, "250", got[8])
}
