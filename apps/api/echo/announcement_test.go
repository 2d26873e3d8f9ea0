package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/agape/core/announcement"
	"github.com/trezcool/agape/core/user"
)

func Test_announcementApi(t *testing.T) {
	app := setup(t)
	secretary := app.staffToken(t, user.RoleSecretary)
	teacher := app.staffToken(t, user.RoleTeacher)

	for _, body := range []string{
		`{"title":"Reunião de pais","body":"Sábado às 9h."}`,
		`{"title":"Feriado","body":"Não haverá aula na sexta.","priority":"URGENT"}`,
		`{"title":"Festa junina","body":"Dia 20 de junho."}`,
	} {
		rec := app.do(newAuthRequest(http.MethodPost, "/api/announcements", secretary, []byte(body)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := app.do(newAuthRequest(http.MethodGet, "/api/announcements", teacher))
	require.Equal(t, http.StatusOK, rec.Code)
	var all []announcement.Announcement
	decode(t, rec, &all)
	require.Len(t, all, 3)

	var urgent announcement.Announcement
	for _, a := range all {
		if a.Title == "Feriado" {
			urgent = a
		}
	}
	assert.Equal(t, announcement.PriorityUrgent, urgent.Priority)

	rec = app.do(newAuthRequest(http.MethodGet, "/api/announcements?limit=2", teacher))
	require.Equal(t, http.StatusOK, rec.Code)
	var limited []announcement.Announcement
	decode(t, rec, &limited)
	assert.Len(t, limited, 2)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "teachers cannot publish",
			method:   http.MethodPost,
			path:     "/api/announcements",
			body:     []byte(`{"title":"X","body":"Y"}`),
			token:    teacher,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "unknown priority",
			method:   http.MethodPost,
			path:     "/api/announcements",
			body:     []byte(`{"title":"X","body":"Y","priority":"low"}`),
			token:    secretary,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "update",
			method:   http.MethodPut,
			path:     "/api/announcements/" + urgent.ID,
			body:     []byte(`{"title":"Feriado","body":"Não haverá aula na segunda."}`),
			token:    secretary,
			wantCode: http.StatusOK,
		},
		{
			name:     "delete",
			method:   http.MethodDelete,
			path:     "/api/announcements/" + urgent.ID,
			token:    secretary,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "retrieve deleted",
			path:     "/api/announcements/" + urgent.ID,
			token:    teacher,
			wantCode: http.StatusNotFound,
		},
	})
}
