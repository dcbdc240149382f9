// Package model holds the contract record, snapshot, raw-log and run types
// shared across the ingestion pipeline.
package model

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// DateFormat is the canonical on-disk form for dates.
const DateFormat = "2006-01-02"

// DatasetHeader is the fixed column order of the reconciled dataset CSV.
var DatasetHeader = []string{
	"PIID", "Agency", "Vendor", "Value", "Description",
	"FPDS Status", "FPDS Link", "Deleted Date", "Savings",
}

// RawFieldNames lists the DOGE API contract fields in wire order. The raw
// fetch log stores these values exactly as received.
var RawFieldNames = []string{
	"piid", "agency", "vendor", "value", "description",
	"fpds_status", "fpds_link", "deleted_date", "savings",
}

// ContractRecord is one government contract savings entry. PIID is the sole
// identity key: two records with the same PIID are the same logical contract
// across runs regardless of other field drift.
type ContractRecord struct {
	PIID        string
	Agency      string
	Vendor      string
	Value       Money
	Description string
	FPDSStatus  string
	FPDSLink    string
	DeletedDate *time.Time
	Savings     Money
}

// Equal reports exact per-field equality. There is no fuzzy comparison: a
// change in casing or whitespace counts as a change.
func (r ContractRecord) Equal(o ContractRecord) bool {
	if r.PIID != o.PIID ||
		r.Agency != o.Agency ||
		r.Vendor != o.Vendor ||
		r.Value != o.Value ||
		r.Description != o.Description ||
		r.FPDSStatus != o.FPDSStatus ||
		r.FPDSLink != o.FPDSLink ||
		r.Savings != o.Savings {
		return false
	}
	switch {
	case r.DeletedDate == nil && o.DeletedDate == nil:
		return true
	case r.DeletedDate == nil || o.DeletedDate == nil:
		return false
	default:
		return r.DeletedDate.Equal(*o.DeletedDate)
	}
}

// CSVRow serializes the record in DatasetHeader order. Empty and unknown
// values become empty strings.
func (r ContractRecord) CSVRow() []string {
	deleted := ""
	if r.DeletedDate != nil {
		deleted = r.DeletedDate.Format(DateFormat)
	}
	return []string{
		r.PIID,
		r.Agency,
		r.Vendor,
		r.Value.String(),
		r.Description,
		r.FPDSStatus,
		r.FPDSLink,
		deleted,
		r.Savings.String(),
	}
}

// RecordFromCSVRow rebuilds a record from a dataset CSV row.
func RecordFromCSVRow(row []string) (ContractRecord, error) {
	if len(row) != len(DatasetHeader) {
		return ContractRecord{}, eris.Errorf("model: row has %d columns, want %d", len(row), len(DatasetHeader))
	}
	rec := ContractRecord{
		PIID:        row[0],
		Agency:      row[1],
		Vendor:      row[2],
		Value:       ParseMoney(row[3]),
		Description: row[4],
		FPDSStatus:  row[5],
		FPDSLink:    row[6],
		Savings:     ParseMoney(row[8]),
	}
	if rec.PIID == "" {
		return ContractRecord{}, eris.New("model: row missing PIID")
	}
	if row[7] != "" {
		t, err := time.Parse(DateFormat, row[7])
		if err != nil {
			return ContractRecord{}, eris.Wrapf(err, "model: parse deleted date for %s", rec.PIID)
		}
		rec.DeletedDate = &t
	}
	return rec, nil
}

// RawFetchEntry is one row of the append-only raw fetch log: exactly what
// the source returned for one contract on one run, pre-normalization.
type RawFetchEntry struct {
	RunID     string
	FetchedAt time.Time
	Page      int
	Values    map[string]string
}

// CSVRow serializes the entry for the raw log: run metadata followed by the
// raw field values in RawFieldNames order.
func (e RawFetchEntry) CSVRow() []string {
	row := make([]string, 0, 3+len(RawFieldNames))
	row = append(row, e.RunID, e.FetchedAt.UTC().Format(time.RFC3339), strconv.Itoa(e.Page))
	for _, name := range RawFieldNames {
		row = append(row, e.Values[name])
	}
	return row
}

// RawLogHeader is the raw fetch log's CSV header.
func RawLogHeader() []string {
	return append([]string{"run_id", "fetched_at", "page"}, RawFieldNames...)
}
