// Package testutil holds the fixtures shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/billing"
	"github.com/trezcool/agape/core/enrollment"
	"github.com/trezcool/agape/core/user"
)

// Config returns the configuration used by tests; nothing is read from the environment.
func Config() *core.Config {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		panic(err)
	}
	return &core.Config{
		AppName:          "Ágape",
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		SecretKey:        "test-secret",
		DefaultFromEmail: mail.Address{Name: "Ágape", Address: "noreply@agape.test"},
		FinanceEmail:     mail.Address{Name: "Financeiro", Address: "financeiro@agape.test"},
		FrontendURL:      "http://app.agape.test",
		Server: core.ServerConfig{
			Host:                      "localhost:0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			PortalSessionDelta:        30 * time.Minute,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		},
		Gateway: core.GatewayConfig{
			BaseURL: "http://gateway.test/api/v3",
			APIKey:  "test-key",
			Timeout: time.Second,
		},
		Billing: core.BillingConfig{
			Currency:    "BRL",
			PhoneRegion: "BR",
			Location:    loc,
		},
		Portal: core.PortalConfig{
			MaxLoginAttempts: 3,
			LoginWindow:      15 * time.Minute,
		},
	}
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewValidator returns a validator with every custom validation registered.
func NewValidator(conf *core.Config) (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := NewTranslator()
	core.InitValidators(validate, translator, conf.Billing.PhoneRegion)
	user.InitValidators(validate, translator)
	return validate, translator
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// Fixtures

func CreateUser(t *testing.T, repo user.Repository, name, uname, email, pwd string, roles []string, isActive bool) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateGuardian(t *testing.T, repo enrollment.Repository, name, taxID, phone string) enrollment.Guardian {
	t.Helper()
	now := time.Now().UTC()
	grdn, err := repo.CreateGuardian(context.Background(), enrollment.Guardian{
		Name:      name,
		TaxID:     core.DigitsOnly(taxID),
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateGuardian(): %v", err)
	}
	return grdn
}

func CreateStudent(t *testing.T, repo enrollment.Repository, name, className, birthDate, guardianID string) enrollment.Student {
	t.Helper()
	now := time.Now().UTC()
	stdnt, err := repo.CreateStudent(context.Background(), enrollment.Student{
		Name:       name,
		ClassName:  className,
		BirthDate:  core.MustParseDate(birthDate),
		GuardianID: guardianID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateStudent(): %v", err)
	}
	return stdnt
}

// CreateCharge stores a pending charge; paidAt, when given, makes it paid.
func CreateCharge(
	t *testing.T,
	repo billing.Repository,
	studentID, amount, dueDate string,
	externalID string,
	paidAt ...time.Time,
) billing.Charge {
	t.Helper()
	now := time.Now().UTC()
	c := billing.Charge{
		StudentID: studentID,
		Type:      billing.TypeTuition,
		Amount:    decimal.RequireFromString(amount),
		DueDate:   core.MustParseDate(dueDate),
		Status:    billing.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if externalID != "" {
		link := "https://pay.test/i/" + externalID
		c.ExternalID = &externalID
		c.PaymentLink = &link
	}
	if len(paidAt) > 0 {
		at := paidAt[0].UTC()
		c.Status = billing.StatusPaid
		c.PaidAt = &at
	}

	c, err := repo.CreateCharge(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateCharge(): %v", err)
	}
	return c
}

// FakeGateway records the calls made to the payment gateway. Err, when set, fails every call.
type FakeGateway struct {
	mu        sync.Mutex
	Err       error
	Customers []string // tax ids
	Requests  []billing.GatewayChargeRequest
}

var _ billing.Gateway = (*FakeGateway)(nil)

func (gw *FakeGateway) CreateOrFetchCustomer(_ context.Context, _, taxID string) (string, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if gw.Err != nil {
		return "", gw.Err
	}
	gw.Customers = append(gw.Customers, taxID)
	return "cus_" + taxID, nil
}

func (gw *FakeGateway) CreateCharge(_ context.Context, req billing.GatewayChargeRequest) (billing.GatewayCharge, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if gw.Err != nil {
		return billing.GatewayCharge{}, gw.Err
	}
	gw.Requests = append(gw.Requests, req)
	id := fmt.Sprintf("pay_%03d", len(gw.Requests))
	return billing.GatewayCharge{PaymentLink: "https://pay.test/i/" + id, ExternalID: id}, nil
}

// Calls counts every call the gateway received.
func (gw *FakeGateway) Calls() int {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return len(gw.Customers) + len(gw.Requests)
}

// ResetDB empties every application table of a postgres database.
func ResetDB(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE TABLE gateway_event, grade, charge, student, guardian, expense, announcement, "user" CASCADE`)
	if err != nil {
		t.Fatalf("ResetDB(): %v", err)
	}
}
