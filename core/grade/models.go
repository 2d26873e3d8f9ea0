package grade

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/agape/core"
)

const Terms = 4

type Grade struct {
	ID        string          `json:"id"`
	StudentID string          `json:"student_id"`
	Subject   string          `json:"subject"`
	Term      int             `json:"term"` // 1..4
	Score     decimal.Decimal `json:"score"`
	Absences  int             `json:"absences"`
	CreatedAt time.Time       `json:"created_at"` // UTC
	UpdatedAt time.Time       `json:"updated_at"` // UTC

	StudentName string `json:"student_name,omitempty"` // set on reads
}

type TermEntry struct {
	StudentID string           `json:"student_id" validate:"required,uuid"`
	Score     *decimal.Decimal `json:"score" validate:"omitempty,gte=0,lte=10"` // entries without score are skipped
	Absences  int              `json:"absences" validate:"gte=0"`
}

// NewTermGrades records the grades of a subject for a whole class in one go.
type NewTermGrades struct {
	Subject string      `json:"subject" validate:"required,notblank,max=80"`
	Term    int         `json:"term" validate:"required,min=1,max=4"`
	Entries []TermEntry `json:"entries" validate:"required,dive"`
}

func (nt *NewTermGrades) Validate(validate *validator.Validate) error {
	nt.Subject = core.CleanString(nt.Subject)
	if err := validate.Struct(nt); err != nil {
		return err
	}

	scored := nt.Entries[:0]
	for _, e := range nt.Entries {
		if e.Score != nil {
			e.StudentID = core.CleanString(e.StudentID)
			scored = append(scored, e)
		}
	}
	nt.Entries = scored
	if len(nt.Entries) == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "entries", Error: "fill in at least one score"})
	}
	return nil
}

type UpdateGrade struct {
	Score    decimal.Decimal `json:"score" validate:"gte=0,lte=10"`
	Absences int             `json:"absences" validate:"gte=0"`
}

func (ug UpdateGrade) Validate(validate *validator.Validate) error { return validate.Struct(ug) }

type QueryFilter struct {
	StudentID string `query:"student_id"`
	Subject   string `query:"subject"`
	Term      int    `query:"term"`
	ClassName string `query:"class"`
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.Subject = core.CleanString(qf.Subject)
	qf.ClassName = core.CleanString(qf.ClassName)
}

// ReportRow is one subject line of a report card.
type ReportRow struct {
	Subject  string             `json:"subject"`
	Scores   []*decimal.Decimal `json:"scores"` // one slot per term, nil when not graded yet
	Absences int                `json:"absences"`
	Average  *decimal.Decimal   `json:"average"`
}

// ReportCard lays the grades of a student out per subject and term.
// Several grades for the same subject and term are allowed: the last one recorded fills the slot
// while every absence count is summed.
func ReportCard(grades []Grade) []ReportRow {
	sorted := make([]Grade, len(grades))
	copy(sorted, grades)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	rows := make(map[string]*ReportRow)
	subjects := make([]string, 0)
	for _, g := range sorted {
		row, ok := rows[g.Subject]
		if !ok {
			row = &ReportRow{Subject: g.Subject, Scores: make([]*decimal.Decimal, Terms)}
			rows[g.Subject] = row
			subjects = append(subjects, g.Subject)
		}
		if g.Term >= 1 && g.Term <= Terms {
			score := g.Score
			row.Scores[g.Term-1] = &score
		}
		row.Absences += g.Absences
	}
	sort.Strings(subjects)

	out := make([]ReportRow, 0, len(subjects))
	for _, subj := range subjects {
		row := rows[subj]
		var sum decimal.Decimal
		var n int64
		for _, s := range row.Scores {
			if s != nil {
				sum = sum.Add(*s)
				n++
			}
		}
		if n > 0 {
			avg := sum.Div(decimal.NewFromInt(n)).Round(2)
			row.Average = &avg
		}
		out = append(out, *row)
	}
	return out
}
