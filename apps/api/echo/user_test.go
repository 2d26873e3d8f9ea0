package echoapi

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/agape/core/portal"
	"github.com/trezcool/agape/core/user"
	"github.com/trezcool/agape/testutil"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	pwd := "Pa$$w0rd!"
	testutil.CreateUser(t, app.users, "Ana Souza", "ana", "ana@agape.test", pwd, []string{user.RoleFinance}, true)
	testutil.CreateUser(t, app.users, "Old Staff", "old", "old@agape.test", pwd, []string{user.RoleTeacher}, false)

	body := func(uname, pwd string) []byte {
		return marshalObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/api/auth/token", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username":"this field is required","password":"this field is required"}`),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/api/auth/token", body: body("nobody", pwd),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/auth/token", body: body("ana", "nope"),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/api/auth/token", body: body("old", pwd),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	runHTTPTests(t, app, tests)

	for _, uname := range []string{"ana", " ANA ", "ana@agape.test"} {
		t.Run("success: "+uname, func(t *testing.T) {
			rec := app.do(newRequest(http.MethodPost, "/api/auth/token", body(uname, pwd)))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp LoginResponse
			decode(t, rec, &resp)
			require.NotEmpty(t, resp.Token)

			// the token opens staff endpoints
			rec = app.do(newAuthRequest(http.MethodGet, "/api/users/me", resp.Token))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var me user.User
			decode(t, rec, &me)
			assert.Equal(t, "ana", me.Username)
			assert.NotNil(t, me.LastLogin)
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)
	token := app.staffToken(t, user.RoleSecretary)

	rec := app.do(newRequest(http.MethodPost, "/api/auth/token/refresh"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(newAuthRequest(http.MethodPost, "/api/auth/token/refresh", token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
}

func Test_staffAuthentication(t *testing.T) {
	app := setup(t)

	teacher := app.staffToken(t, user.RoleTeacher)
	finance := app.staffToken(t, user.RoleFinance)
	owner := app.staffToken(t, user.RoleOwner)

	portalToken, err := GenerateToken(GetPortalClaims(app.conf, portal.Identity{StudentID: "x"}), app.conf.SecretKey)
	require.NoError(t, err)
	forged, err := GenerateToken(GetUserClaims(app.conf, user.User{ID: "x", Roles: []string{user.RoleOwner}}), "not-the-key")
	require.NoError(t, err)

	forbidden := marshalObj(t, httpErr{Error: "permission denied"})
	invalid := marshalObj(t, httpErr{Error: "invalid or expired jwt"})

	tests := []httpTest{
		{name: "auth required", path: "/api/charges", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "portal token rejected", path: "/api/charges", token: portalToken, wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "bad signature", path: "/api/charges", token: forged, wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "teacher cannot see charges", path: "/api/charges", token: teacher, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "finance sees charges", path: "/api/charges", token: finance, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "owner sees charges", path: "/api/charges", token: owner, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "teacher sees grades", path: "/api/grades", token: teacher, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "finance cannot see grades", path: "/api/grades", token: finance, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "finance cannot manage staff", path: "/api/users", token: finance, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "anyone lists classes", path: "/api/classes", token: teacher, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	}
	runHTTPTests(t, app, tests)
}

func Test_userApi_manage(t *testing.T) {
	app := setup(t)

	owner := testutil.CreateUser(t, app.users, "Owner", "owner", "owner@agape.test", "", []string{user.RoleOwner}, true)
	token := getToken(t, app.conf, owner)

	// create
	rec := app.do(newAuthRequest(http.MethodPost, "/api/users", token, marshalObj(t, user.NewUser{
		Name:            "Bia Lima",
		Username:        "bia_lima",
		Email:           "Bia@Agape.test",
		Password:        "C0mpl3x!Secret",
		PasswordConfirm: "C0mpl3x!Secret",
		Roles:           []string{user.RoleTeacher},
	})))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var bia user.User
	decode(t, rec, &bia)
	assert.Equal(t, "bia@agape.test", bia.Email)
	assert.True(t, bia.Active())

	// duplicate username
	rec = app.do(newAuthRequest(http.MethodPost, "/api/users", token, marshalObj(t, user.NewUser{
		Name:            "Other",
		Username:        "bia_lima",
		Password:        "C0mpl3x!Secret",
		PasswordConfirm: "C0mpl3x!Secret",
		Roles:           []string{user.RoleTeacher},
	})))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// query
	rec = app.do(newAuthRequest(http.MethodGet, "/api/users?role=teacher", token))
	require.Equal(t, http.StatusOK, rec.Code)
	var users []user.User
	decode(t, rec, &users)
	require.Len(t, users, 1)
	assert.Equal(t, bia.ID, users[0].ID)

	// deactivate
	rec = app.do(newAuthRequest(http.MethodPut, "/api/users/"+bia.ID, token, []byte(`{"is_active":false}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &bia)
	assert.False(t, bia.Active())

	// the owner cannot lock themselves out
	rec = app.do(newAuthRequest(http.MethodPut, "/api/users/"+owner.ID, token, []byte(`{"is_active":false}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = app.do(newAuthRequest(http.MethodDelete, "/api/users/"+owner.ID, token))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// delete
	rec = app.do(newAuthRequest(http.MethodDelete, "/api/users/"+bia.ID, token))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = app.do(newAuthRequest(http.MethodGet, "/api/users/"+bia.ID, token))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.users, "Ana Souza", "ana", "ana@agape.test", "Pa$$w0rd!", []string{user.RoleFinance}, true)

	sent := marshalObj(t, SuccessResponse{Success: passwordResetSent})
	runHTTPTests(t, app, []httpTest{
		{
			name: "required email", method: http.MethodPost, path: "/api/auth/password-reset", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "invalid email", method: http.MethodPost, path: "/api/auth/password-reset", body: []byte(`{"email":"lol"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/api/auth/password-reset", body: []byte(`{"email":"lol@agape.test"}`),
			wantCode: http.StatusOK, wantData: sent,
		},
	})
	require.Empty(t, app.mail.Sent())

	rec := app.do(newRequest(http.MethodPost, "/api/auth/password-reset", []byte(`{"email":"Ana@Agape.test"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, string(sent), rec.Body.String())

	msgs := app.mail.Sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, usr.Email, msgs[0].To[0].Address)
	m := regexp.MustCompile(`/password-reset/([^/\s]+)/([^/\s]+)`).FindStringSubmatch(msgs[0].TextContent)
	require.Len(t, m, 3, msgs[0].TextContent)

	confirm := func(token string) []byte {
		return marshalObj(t, user.ResetUserPassword{UID: m[1], Token: token, Password: "N3w-Passw0rd!", PasswordConfirm: "N3w-Passw0rd!"})
	}

	rec = app.do(newRequest(http.MethodPost, "/api/auth/password-reset/confirm", confirm("HE4TS-forged")))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = app.do(newRequest(http.MethodPost, "/api/auth/password-reset/confirm", confirm(m[2])))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(newRequest(http.MethodPost, "/api/auth/token", marshalObj(t, LoginRequest{Username: "ana", Password: "N3w-Passw0rd!"})))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
