package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/agape/core/billing"
	"github.com/trezcool/agape/core/portal"
	"github.com/trezcool/agape/core/user"
	"github.com/trezcool/agape/testutil"
)

func portalLogin(taxID, birthDate string) []byte {
	return []byte(`{"tax_id":"` + taxID + `","birth_date":"` + birthDate + `"}`)
}

func Test_portalApi_loginAndDashboard(t *testing.T) {
	app := setup(t)
	grdn := testutil.CreateGuardian(t, app.enrollment, "Maria Souza", "12345678909", "11987654321")
	pedro := testutil.CreateStudent(t, app.enrollment, "Pedro Souza", "3A", "2015-04-02", grdn.ID)
	other := testutil.CreateStudent(t, app.enrollment, "Bia Souza", "5A", "2013-08-30", grdn.ID)

	older := testutil.CreateCharge(t, app.charges, pedro.ID, "450.00", "2024-02-10", "pay_1", time.Now())
	newer := testutil.CreateCharge(t, app.charges, pedro.ID, "450.00", "2024-03-10", "pay_2")
	testutil.CreateCharge(t, app.charges, other.ID, "99.00", "2024-03-10", "pay_3")

	rec := app.do(newRequest(http.MethodPost, "/api/portal/login", portalLogin("123.456.789-09", "2015-04-02")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login PortalLoginResponse
	decode(t, rec, &login)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, portal.Identity{StudentID: pedro.ID, GuardianID: grdn.ID, StudentName: "Pedro Souza"}, login.Identity)
	assert.WithinDuration(t, time.Now().Add(app.conf.Server.PortalSessionDelta), login.ExpiresAt, time.Minute)

	rec = app.do(newAuthRequest(http.MethodGet, "/api/portal/dashboard", login.Token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dash portal.Dashboard
	decode(t, rec, &dash)
	assert.Equal(t, pedro.ID, dash.Student.ID)
	require.Len(t, dash.Charges, 2)
	assert.Equal(t, newer.ID, dash.Charges[0].ID)
	assert.Equal(t, billing.StatusOverdue, dash.Charges[0].EffectiveStatus)
	assert.Equal(t, older.ID, dash.Charges[1].ID)
	assert.Equal(t, billing.StatusPaid, dash.Charges[1].EffectiveStatus)

	t.Run("portal token is not a staff token", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/api/charges", login.Token))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("staff token is not a portal token", func(t *testing.T) {
		token := app.staffToken(t, user.RoleOwner)
		rec := app.do(newAuthRequest(http.MethodGet, "/api/portal/dashboard", token))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := app.do(newRequest(http.MethodGet, "/api/portal/dashboard"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_portalApi_loginFailures(t *testing.T) {
	app := setup(t)
	grdn := testutil.CreateGuardian(t, app.enrollment, "Maria Souza", "12345678909", "11987654321")
	testutil.CreateStudent(t, app.enrollment, "Pedro Souza", "3A", "2015-04-02", grdn.ID)

	invalid := httpErr{Error: portal.ErrInvalidCredentials.Error()}

	runHTTPTests(t, app, []httpTest{
		{
			name:     "malformed tax id",
			method:   http.MethodPost,
			path:     "/api/portal/login",
			body:     portalLogin("123", "2015-04-02"),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing birth date",
			method:   http.MethodPost,
			path:     "/api/portal/login",
			body:     []byte(`{"tax_id":"98765432100"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown guardian",
			method:   http.MethodPost,
			path:     "/api/portal/login",
			body:     portalLogin("98765432100", "2015-04-02"),
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, invalid),
		},
	})

	// attempts are counted per tax id
	for i := 0; i < app.conf.Portal.MaxLoginAttempts; i++ {
		rec := app.do(newRequest(http.MethodPost, "/api/portal/login", portalLogin("12345678909", "2015-04-03")))
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	rec := app.do(newRequest(http.MethodPost, "/api/portal/login", portalLogin("12345678909", "2015-04-02")))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, string(marshalObj(t, httpErr{Error: portal.ErrTooManyAttempts.Error()})), rec.Body.String())

	// other guardians are not locked out
	rec = app.do(newRequest(http.MethodPost, "/api/portal/login", portalLogin("98765432100", "2015-04-02")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
