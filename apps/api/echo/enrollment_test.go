package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/agape/core/billing"
	"github.com/trezcool/agape/core/enrollment"
	"github.com/trezcool/agape/core/grade"
	"github.com/trezcool/agape/core/user"
	"github.com/trezcool/agape/testutil"
)

func Test_enrollmentApi_enroll(t *testing.T) {
	app := setup(t)
	secretary := app.staffToken(t, user.RoleSecretary)
	teacher := app.staffToken(t, user.RoleTeacher)

	body := []byte(`{
		"guardian": {"name": "Maria Souza", "tax_id": "123.456.789-09", "phone": "(11) 98765-4321"},
		"student": {"name": "  Pedro Souza ", "class_name": "3A", "birth_date": "2015-04-02"}
	}`)

	rec := app.do(newAuthRequest(http.MethodPost, "/api/students", teacher, body))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(newAuthRequest(http.MethodPost, "/api/students", secretary, body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var pedro enrollment.Student
	decode(t, rec, &pedro)
	assert.Equal(t, "Pedro Souza", pedro.Name)
	require.NotNil(t, pedro.Guardian)
	assert.Equal(t, "12345678909", pedro.Guardian.TaxID)

	// a sibling joins the existing guardian
	sibling := []byte(fmt.Sprintf(
		`{"guardian_id":%q,"student":{"name":"Bia Souza","class_name":"5A","birth_date":"2013-08-30"}}`,
		pedro.GuardianID,
	))
	rec = app.do(newAuthRequest(http.MethodPost, "/api/students", secretary, sibling))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	runHTTPTests(t, app, []httpTest{
		{
			name:     "unknown guardian",
			method:   http.MethodPost,
			path:     "/api/students",
			body:     []byte(`{"guardian_id":"00000000-0000-0000-0000-000000000000","student":{"name":"X","class_name":"1A","birth_date":"2019-01-01"}}`),
			token:    secretary,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "no guardian at all",
			method:   http.MethodPost,
			path:     "/api/students",
			body:     []byte(`{"student":{"name":"X","class_name":"1A","birth_date":"2019-01-01"}}`),
			token:    secretary,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "classes",
			path:     "/api/classes",
			token:    teacher,
			wantCode: http.StatusOK,
			wantData: []byte(`["3A","5A"]`),
		},
		{
			name:     "guardians are for the secretary",
			path:     "/api/guardians",
			token:    teacher,
			wantCode: http.StatusForbidden,
		},
	})

	t.Run("query students", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/api/students?search=souza&ordering=-birth_date", teacher))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var students []enrollment.Student
		decode(t, rec, &students)
		require.Len(t, students, 2)
		assert.Equal(t, "Pedro Souza", students[0].Name)
		assert.Equal(t, "Bia Souza", students[1].Name)
	})

	t.Run("update student", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodPut, "/api/students/"+pedro.ID, secretary, []byte(`{"class_name":"4A"}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var updated enrollment.Student
		decode(t, rec, &updated)
		assert.Equal(t, "4A", updated.ClassName)
		assert.Equal(t, "Pedro Souza", updated.Name)
		assert.True(t, updated.BirthDate.Equal(pedro.BirthDate))
	})

	t.Run("update guardian with a bad phone", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodPut, "/api/guardians/"+pedro.GuardianID, secretary, []byte(`{"phone":"123"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_enrollmentApi_deleteCascades(t *testing.T) {
	app := setup(t)
	secretary := app.staffToken(t, user.RoleSecretary)
	teacher := app.staffToken(t, user.RoleTeacher)
	ctx := context.Background()

	grdn := testutil.CreateGuardian(t, app.enrollment, "Maria Souza", "12345678909", "11987654321")
	pedro := testutil.CreateStudent(t, app.enrollment, "Pedro Souza", "3A", "2015-04-02", grdn.ID)
	bia := testutil.CreateStudent(t, app.enrollment, "Bia Souza", "5A", "2013-08-30", grdn.ID)
	other := testutil.CreateGuardian(t, app.enrollment, "João Lima", "98765432100", "")
	lia := testutil.CreateStudent(t, app.enrollment, "Lia Lima", "1B", "2017-09-12", other.ID)

	for _, id := range []string{pedro.ID, bia.ID, lia.ID} {
		testutil.CreateCharge(t, app.charges, id, "100.00", "2030-01-10", "")
	}

	terms := []byte(fmt.Sprintf(`{"subject":"Matemática","term":1,"entries":[
		{"student_id":%q,"score":8.5,"absences":1},
		{"student_id":%q,"score":7},
		{"student_id":%q,"score":null}
	]}`, pedro.ID, bia.ID, lia.ID))
	rec := app.do(newAuthRequest(http.MethodPost, "/api/grades/term", teacher, terms))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created []grade.Grade
	decode(t, rec, &created)
	require.Len(t, created, 2)

	rec = app.do(newAuthRequest(http.MethodGet, "/api/students/"+pedro.ID+"/report-card", teacher))
	require.Equal(t, http.StatusOK, rec.Code)
	var card []grade.ReportRow
	decode(t, rec, &card)
	require.Len(t, card, 1)
	require.NotNil(t, card[0].Scores[0])
	assert.True(t, card[0].Scores[0].Equal(decimal.RequireFromString("8.5")))
	assert.Equal(t, 1, card[0].Absences)

	countCharges := func(studentID string) int {
		charges, err := app.charges.QueryCharges(ctx, billing.ChargeQuery{StudentID: studentID})
		require.NoError(t, err)
		return len(charges)
	}
	countGrades := func(studentID string) int {
		grades, err := app.grades.QueryGrades(ctx, grade.QueryFilter{StudentID: studentID})
		require.NoError(t, err)
		return len(grades)
	}

	t.Run("delete student", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodDelete, "/api/students/"+pedro.ID, secretary))
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := app.enrollment.GetStudent(ctx, pedro.ID)
		assert.Equal(t, enrollment.ErrStudentNotFound, err)
		assert.Zero(t, countCharges(pedro.ID))
		assert.Zero(t, countGrades(pedro.ID))

		assert.Equal(t, 1, countCharges(bia.ID))
		assert.Equal(t, 1, countGrades(bia.ID))
	})

	t.Run("delete guardian", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodDelete, "/api/guardians/"+grdn.ID, secretary))
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := app.enrollment.GetGuardian(ctx, grdn.ID)
		assert.Equal(t, enrollment.ErrGuardianNotFound, err)
		_, err = app.enrollment.GetStudent(ctx, bia.ID)
		assert.Equal(t, enrollment.ErrStudentNotFound, err)
		assert.Zero(t, countCharges(bia.ID))
		assert.Zero(t, countGrades(bia.ID))

		// other families are untouched
		assert.Equal(t, 1, countCharges(lia.ID))
	})

	runHTTPTests(t, app, []httpTest{
		{
			name:     "delete unknown student",
			method:   http.MethodDelete,
			path:     "/api/students/" + pedro.ID,
			token:    secretary,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "delete unknown guardian",
			method:   http.MethodDelete,
			path:     "/api/guardians/" + grdn.ID,
			token:    secretary,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "teachers cannot delete",
			method:   http.MethodDelete,
			path:     "/api/students/" + lia.ID,
			token:    teacher,
			wantCode: http.StatusForbidden,
		},
	})
}

