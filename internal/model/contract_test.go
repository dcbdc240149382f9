package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestContractRecordEqual(t *testing.T) {
	base := ContractRecord{
		PIID:       "A1",
		Agency:     "GSA",
		Vendor:     "Acme",
		Value:      KnownMoney(100),
		FPDSStatus: "active",
		Savings:    KnownMoney(50),
	}

	assert.True(t, base.Equal(base))

	changed := base
	changed.Value = KnownMoney(150)
	assert.False(t, base.Equal(changed))

	// Exact comparison: casing counts as a change.
	cased := base
	cased.Vendor = "ACME"
	assert.False(t, base.Equal(cased))

	// Known zero differs from unknown.
	zero := base
	zero.Savings = KnownMoney(0)
	unknown := base
	unknown.Savings = UnknownMoney()
	assert.False(t, zero.Equal(unknown))

	deleted := base
	deleted.DeletedDate = date(2025, time.March, 1)
	assert.False(t, base.Equal(deleted))
	assert.True(t, deleted.Equal(deleted))
}

func TestCSVRowRoundTrip(t *testing.T) {
	rec := ContractRecord{
		PIID:        "47QTCA21D003L",
		Agency:      "General Services Administration",
		Vendor:      "Acme Corp",
		Value:       KnownMoney(1500000),
		Description: "IT support, \"tier 2\"",
		FPDSStatus:  "terminated",
		FPDSLink:    "https://www.fpds.gov/ezsearch/search.do?q=47QTCA21D003L",
		DeletedDate: date(2025, time.February, 14),
		Savings:     KnownMoney(250000.75),
	}

	row := rec.CSVRow()
	require.Len(t, row, len(DatasetHeader))

	back, err := RecordFromCSVRow(row)
	require.NoError(t, err)
	assert.True(t, rec.Equal(back))
}

func TestCSVRowUnknownValuesEmpty(t *testing.T) {
	rec := ContractRecord{PIID: "X", Value: UnknownMoney(), Savings: UnknownMoney()}
	row := rec.CSVRow()
	assert.Equal(t, "", row[3])
	assert.Equal(t, "", row[7])
	assert.Equal(t, "", row[8])
}

func TestRecordFromCSVRowErrors(t *testing.T) {
	_, err := RecordFromCSVRow([]string{"too", "short"})
	assert.Error(t, err)

	_, err = RecordFromCSVRow([]string{"", "a", "v", "1", "d", "s", "l", "", "2"})
	assert.Error(t, err, "missing PIID must fail")

	_, err = RecordFromCSVRow([]string{"A1", "a", "v", "1", "d", "s", "l", "not-a-date", "2"})
	assert.Error(t, err)
}

func TestRawFetchEntryCSVRow(t *testing.T) {
	e := RawFetchEntry{
		RunID:     "run-1",
		FetchedAt: time.Date(2025, time.June, 1, 12, 30, 0, 0, time.UTC),
		Page:      3,
		Values: map[string]string{
			"piid":    "A1",
			"savings": "100.5",
		},
	}
	row := e.CSVRow()
	require.Len(t, row, len(RawLogHeader()))
	assert.Equal(t, "run-1", row[0])
	assert.Equal(t, "2025-06-01T12:30:00Z", row[1])
	assert.Equal(t, "3", row[2])
	assert.Equal(t, "A1", row[3])
	assert.Equal(t, "100.5", row[11])
}

func TestSnapshot(t *testing.T) {
	a := ContractRecord{PIID: "A", Vendor: "one"}
	b := ContractRecord{PIID: "B"}
	a2 := ContractRecord{PIID: "A", Vendor: "two"}

	s := NewSnapshot([]ContractRecord{a, b, a2})
	assert.Equal(t, 2, s.Len())

	// Duplicate PIID keeps first-seen position, later value.
	recs := s.Records()
	assert.Equal(t, "A", recs[0].PIID)
	assert.Equal(t, "two", recs[0].Vendor)

	got, ok := s.Get("B")
	require.True(t, ok)
	assert.Equal(t, b, got)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestSnapshotActiveLen(t *testing.T) {
	s := NewSnapshot([]ContractRecord{
		{PIID: "A"},
		{PIID: "B", DeletedDate: date(2025, time.January, 2)},
	})
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.ActiveLen())
}
