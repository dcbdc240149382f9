// Package report builds the analyst-facing view of the dataset: renamed
// columns, required fields enforced, known-bad values scrubbed.
package report

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/doge-tracker/internal/model"
)

// badFPDSLink is a placeholder the source emits instead of a real detail
// link; it is blanked rather than shown.
const badFPDSLink = "https://fpds.gov"

// Row is one analyst-facing report row.
type Row struct {
	PIID        string
	BuyingOrg   string // agency
	Incumbent   string // vendor
	TCV         model.Money
	Description string
	Status      string
	FPDSLink    string
	DeletedOn   *time.Time
	Savings     model.Money
}

// Header returns the report column names in order.
func Header() []string {
	return []string{
		"PIID", "Buying Org 1", "Incumbent", "Total Contract Value (TCV)",
		"Description", "Status", "FPDS Link", "Deleted On", "Savings",
	}
}

// CSVRow serializes the row in Header order.
func (r Row) CSVRow() []string {
	deleted := ""
	if r.DeletedOn != nil {
		deleted = r.DeletedOn.Format(model.DateFormat)
	}
	return []string{
		r.PIID, r.BuyingOrg, r.Incumbent, r.TCV.String(),
		r.Description, r.Status, r.FPDSLink, deleted, r.Savings.String(),
	}
}

// Build converts records to report rows. Rows missing a required field
// (agency, a known contract value, a deletion date, or known savings) are
// dropped; without them the row is not worth evaluating.
func Build(records []model.ContractRecord) []Row {
	rows := make([]Row, 0, len(records))
	dropped := 0
	for _, rec := range records {
		if rec.Agency == "" || !rec.Value.Known || rec.DeletedDate == nil || !rec.Savings.Known {
			dropped++
			continue
		}
		link := rec.FPDSLink
		if link == badFPDSLink {
			link = ""
		}
		rows = append(rows, Row{
			PIID:        rec.PIID,
			BuyingOrg:   rec.Agency,
			Incumbent:   rec.Vendor,
			TCV:         rec.Value,
			Description: rec.Description,
			Status:      rec.FPDSStatus,
			FPDSLink:    link,
			DeletedOn:   rec.DeletedDate,
			Savings:     rec.Savings,
		})
	}
	if dropped > 0 {
		zap.L().Info("report rows dropped for missing required fields",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(rows)),
		)
	}
	return rows
}
