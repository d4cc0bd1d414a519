// Package classify partitions the cached employee records into the outbound
// event categories by walking each record's embedded status history.
package classify

import (
	"log/slog"

	"github.com/lfreitas-dev/hrbridge/internal/feed"
)

// Reserved status codes, compared after leading-zero normalization. They
// have dedicated categories and are excluded from the generic leave bucket.
const (
	CodeActive      = "1"
	CodeVacation    = "2"
	CodeTermination = "3"
)

// Category names an outbound event type.
type Category string

const (
	CategoryActive      Category = "active"
	CategoryVacation    Category = "vacation"
	CategoryLeave       Category = "leave"
	CategoryTermination Category = "termination"
)

// TerminationEvent is one termination occurrence, keyed for the delivery
// ledger by (padded registration, DD/MM/YYYY date).
type TerminationEvent struct {
	EmployeeNo string
	FullName   string
	DateISO    string
	Date       string
}

// Result is the partitioned output of one classification pass. An employee
// with several status entries can appear in multiple categories within the
// same run; each entry produces its own output record.
type Result struct {
	Active       []EmployeeRow
	Vacations    []AbsenceRow
	Leaves       []AbsenceRow
	Terminations []TerminationEvent
}

// Classifier maps employee records to downstream categories. The catalog
// labels generic leaves; KeyField selects which employee identifier the
// target matches active uploads on.
type Classifier struct {
	Catalog  feed.Catalog
	KeyField string // "cpf" or "matricula"
	Log      *slog.Logger
}

// Classify walks every status entry of every record. Codes normalize by
// leading-zero stripping ("01" ≡ "1"); 1/2/3 route to the dedicated
// categories, anything else becomes a generic leave with a catalog label.
//
// Employees carrying any termination entry are excluded from the active
// category, so the target never resurrects a terminated employee.
func (c *Classifier) Classify(records []feed.EmployeeRecord) Result {
	log := c.logger()
	var res Result

	for i := range records {
		rec := &records[i]
		terminated := hasTermination(rec)
		activeEmitted := false

		for _, st := range rec.Statuses {
			code := st.Code.String()
			switch feed.NormalizeCode(code) {
			case CodeActive:
				if terminated || activeEmitted {
					continue
				}
				res.Active = append(res.Active, c.employeeRow(rec))
				activeEmitted = true

			case CodeVacation:
				res.Vacations = append(res.Vacations, AbsenceRow{
					AbsenceID:  CodeVacation,
					Start:      feed.FormatDateBR(st.Start),
					End:        feed.FormatDateBR(st.End),
					Note:       "Ferias",
					EmployeeNo: rec.Key(),
				})

			case CodeTermination:
				res.Terminations = append(res.Terminations, TerminationEvent{
					EmployeeNo: rec.Key(),
					FullName:   rec.FullName,
					DateISO:    st.Start,
					Date:       feed.FormatDateBR(st.Start),
				})

			default:
				label, known := c.Catalog.Describe(code)
				if !known {
					log.Warn("unmapped leave code, using generic label",
						"code", code, "employee", rec.Key())
				}
				res.Leaves = append(res.Leaves, AbsenceRow{
					AbsenceID:  code,
					Start:      feed.FormatDateBR(st.Start),
					End:        feed.FormatDateBR(st.End),
					Note:       label,
					EmployeeNo: rec.Key(),
				})
			}
		}
	}

	log.Info("records classified",
		"active", len(res.Active),
		"vacations", len(res.Vacations),
		"leaves", len(res.Leaves),
		"terminations", len(res.Terminations))
	return res
}

func hasTermination(rec *feed.EmployeeRecord) bool {
	for _, st := range rec.Statuses {
		if feed.NormalizeCode(st.Code.String()) == CodeTermination {
			return true
		}
	}
	return false
}

func (c *Classifier) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}
