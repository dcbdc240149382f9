// Package parse converts raw DOGE API contract fragments into typed records.
package parse

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/doge-tracker/internal/model"
)

// MalformedRecordError reports a fragment that cannot become a record. The
// pipeline skips and logs these; they never abort a page.
type MalformedRecordError struct {
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return "malformed record: " + e.Reason
}

// dateFormats are accepted for deleted_date, first match wins. The API has
// shipped both ISO and US-style dates.
var dateFormats = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	time.RFC3339,
}

// wire mirrors one contract object from the API. Amounts and dates arrive
// as numbers, strings, or null depending on the record.
type wire struct {
	PIID        string          `json:"piid"`
	Agency      string          `json:"agency"`
	Vendor      string          `json:"vendor"`
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description"`
	FPDSStatus  string          `json:"fpds_status"`
	FPDSLink    string          `json:"fpds_link"`
	DeletedDate string          `json:"deleted_date"`
	Savings     json.RawMessage `json:"savings"`
}

// Record parses one raw fragment into a ContractRecord. A missing or empty
// piid fails the record. Amounts that fail to parse become the unknown
// sentinel rather than zero. An unparseable deleted_date fails the record,
// since deletion markers are meaningless without their date.
func Record(fragment []byte) (model.ContractRecord, error) {
	var w wire
	if err := json.Unmarshal(fragment, &w); err != nil {
		return model.ContractRecord{}, &MalformedRecordError{Reason: "invalid JSON: " + err.Error()}
	}

	piid := strings.TrimSpace(w.PIID)
	if piid == "" {
		return model.ContractRecord{}, &MalformedRecordError{Reason: "missing piid"}
	}

	rec := model.ContractRecord{
		PIID:        piid,
		Agency:      w.Agency,
		Vendor:      w.Vendor,
		Value:       amount(w.Value, piid, "value"),
		Description: w.Description,
		FPDSStatus:  w.FPDSStatus,
		FPDSLink:    w.FPDSLink,
		Savings:     amount(w.Savings, piid, "savings"),
	}

	if w.DeletedDate != "" {
		t, err := parseDate(w.DeletedDate)
		if err != nil {
			return model.ContractRecord{}, &MalformedRecordError{
				Reason: fmt.Sprintf("piid %s: bad deleted_date %q", piid, w.DeletedDate),
			}
		}
		rec.DeletedDate = &t
	}

	return rec, nil
}

// RawValues extracts the wire-order field values of a fragment as strings
// for the raw fetch log, exactly as received (numbers keep their literal
// form, null and absent fields become empty).
func RawValues(fragment []byte) map[string]string {
	var fields map[string]json.RawMessage
	values := make(map[string]string, len(model.RawFieldNames))
	if err := json.Unmarshal(fragment, &fields); err != nil {
		return values
	}
	for _, name := range model.RawFieldNames {
		raw, ok := fields[name]
		if !ok || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			values[name] = s
			continue
		}
		values[name] = string(raw)
	}
	return values
}

// amount parses a JSON number or currency string into Money. Failures are
// flagged as unknown, never coerced to zero.
func amount(raw json.RawMessage, piid, field string) model.Money {
	if len(raw) == 0 || string(raw) == "null" {
		return model.UnknownMoney()
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return model.KnownMoney(f)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		m := model.ParseMoney(s)
		if !m.Known {
			zap.L().Debug("unparseable amount, keeping unknown",
				zap.String("piid", piid),
				zap.String("field", field),
				zap.String("value", s),
			)
		}
		return m
	}

	zap.L().Debug("unparseable amount, keeping unknown",
		zap.String("piid", piid),
		zap.String("field", field),
		zap.String("value", string(raw)),
	)
	return model.UnknownMoney()
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			// Normalize to a bare date.
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, &MalformedRecordError{Reason: "unparseable date " + strconv.Quote(s)}
}
