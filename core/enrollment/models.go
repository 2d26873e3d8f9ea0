package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/agape/core"
)

type Guardian struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TaxID     string    `json:"tax_id"` // digits only; may be empty until billing needs it
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type Student struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ClassName  string    `json:"class_name"`
	BirthDate  core.Date `json:"birth_date"`
	GuardianID string    `json:"guardian_id"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC

	Guardian *Guardian `json:"guardian,omitempty"` // set on reads
}

// NewGuardian contains information needed to register a Guardian.
type NewGuardian struct {
	Name  string `json:"name" validate:"required,notblank"`
	TaxID string `json:"tax_id" validate:"omitempty,taxid"`
	Phone string `json:"phone" validate:"omitempty,phone"`
	Email string `json:"email" validate:"omitempty,email"`
}

func (ng *NewGuardian) clean() {
	ng.Name = core.CleanString(ng.Name)
	ng.TaxID = core.DigitsOnly(ng.TaxID)
	ng.Phone = core.CleanString(ng.Phone)
	ng.Email = core.CleanString(ng.Email, true /* lower */)
}

// NewStudent contains information needed to register a Student.
type NewStudent struct {
	Name      string    `json:"name" validate:"required,notblank"`
	ClassName string    `json:"class_name" validate:"required,notblank"`
	BirthDate core.Date `json:"birth_date" validate:"required"`
}

// NewEnrollment registers a Student under a new or an existing Guardian.
type NewEnrollment struct {
	GuardianID string       `json:"guardian_id" validate:"omitempty,uuid"`
	Guardian   *NewGuardian `json:"guardian" validate:"required_without=GuardianID"`
	Student    NewStudent   `json:"student"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.GuardianID = core.CleanString(ne.GuardianID)
	if ne.GuardianID != "" {
		ne.Guardian = nil
	}
	if ne.Guardian != nil {
		ne.Guardian.clean()
	}
	ne.Student.Name = core.CleanString(ne.Student.Name)
	ne.Student.ClassName = core.CleanString(ne.Student.ClassName)
	return validate.Struct(ne)
}

// UpdateGuardian defines what information may be provided to modify an existing Guardian.
// Blank fields keep their current value.
type UpdateGuardian struct {
	Name  string `json:"name"`
	TaxID string `json:"tax_id" validate:"omitempty,taxid"`
	Phone string `json:"phone" validate:"omitempty,phone"`
	Email string `json:"email" validate:"omitempty,email"`
}

func (ug *UpdateGuardian) Validate(orig Guardian, validate *validator.Validate) error {
	ng := NewGuardian{Name: ug.Name, TaxID: ug.TaxID, Phone: ug.Phone, Email: ug.Email}
	ng.clean()
	if err := validate.Struct(UpdateGuardian(ng)); err != nil {
		return err
	}

	*ug = UpdateGuardian(ng)
	if ug.Name == "" {
		ug.Name = orig.Name
	}
	if ug.TaxID == "" {
		ug.TaxID = orig.TaxID
	}
	if ug.Phone == "" {
		ug.Phone = orig.Phone
	}
	if ug.Email == "" {
		ug.Email = orig.Email
	}
	return nil
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Blank fields keep their current value.
type UpdateStudent struct {
	Name       string    `json:"name"`
	ClassName  string    `json:"class_name"`
	BirthDate  core.Date `json:"birth_date"`
	GuardianID string    `json:"guardian_id" validate:"omitempty,uuid"`
}

func (us *UpdateStudent) Validate(orig Student, validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	us.ClassName = core.CleanString(us.ClassName)
	us.GuardianID = core.CleanString(us.GuardianID)
	if err := validate.Struct(us); err != nil {
		return err
	}

	if us.Name == "" {
		us.Name = orig.Name
	}
	if us.ClassName == "" {
		us.ClassName = orig.ClassName
	}
	if us.BirthDate.IsZero() {
		us.BirthDate = orig.BirthDate
	}
	if us.GuardianID == "" {
		us.GuardianID = orig.GuardianID
	}
	return nil
}

type StudentFilter struct {
	Search     string `query:"search"` // case-insensitive match on the student or guardian name
	ClassName  string `query:"class"`
	GuardianID string `query:"guardian_id"`
}

func (qf *StudentFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ClassName = core.CleanString(qf.ClassName)
	qf.GuardianID = core.CleanString(qf.GuardianID)
}

// StudentOrderings lists the fields students may be ordered by.
var StudentOrderings = map[string]bool{
	"name":       true,
	"class_name": true,
	"birth_date": true,
	"created_at": true,
}
