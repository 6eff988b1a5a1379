package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classattend/internal/attendance"
	"classattend/internal/classroom"
	"classattend/internal/config"
	"classattend/internal/httpmiddleware"
	"classattend/internal/logger"
	"classattend/internal/reports"
)

type apiTest struct {
	t      *testing.T
	router *gin.Engine
	logs   *bytes.Buffer
}

func newAPI(t *testing.T, health map[string]HealthCheck) *apiTest {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.App{
		Env:             "test",
		JWTIssuer:       "classattend-test",
		JWTSigningKey:   "test-key",
		AccessTTL:       time.Hour,
		SuperAdminKey:   "super",
		RateLimitPerMin: 10000,
	}
	classes := classroom.NewService(classroom.NewMemoryRepository(), 75)
	att := attendance.NewService(classes, attendance.NewMemoryStore(), attendance.Options{SafetyBuffer: 5, CountUnverified: true})
	reps := reports.NewService(reports.NewMemoryRepository(), classes, att)
	var logs bytes.Buffer
	r := NewRouter(Deps{
		Config:        cfg,
		Classes:       classes,
		Attendance:    att,
		Reports:       reps,
		Log:           logger.New(&logs, logger.DEBUG),
		ReportLimiter: httpmiddleware.NewFixedWindow("reports", httpmiddleware.NewMemoryCounter(), 2, time.Minute).GinMiddleware(),
		Health:        health,
	})
	return &apiTest{t: t, router: r, logs: &logs}
}

func (a *apiTest) do(method, path, token string, body any, header ...string) (int, map[string]any) {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

// seed creates class "CSE A" with rolls 1..3, subject S1 on Mondays and
// returns the class id with an admin token.
func (a *apiTest) seed() (string, string) {
	a.t.Helper()
	code, body := a.do(http.MethodPost, "/v1/classes", "", map[string]any{
		"className":   "CSE A",
		"adminPin":    "1234",
		"rollNumbers": []any{1, "2", 3},
		"subjects":    []map[string]string{{"id": "S1", "name": "Math"}},
		"timetable":   map[string]any{"Monday": []map[string]string{{"subjectId": "S1"}}},
	})
	require.Equal(a.t, http.StatusCreated, code, body)
	class := body["class"].(map[string]any)
	return class["id"].(string), body["access_token"].(string)
}

func (a *apiTest) studentToken(roll any) string {
	a.t.Helper()
	code, body := a.do(http.MethodPost, "/v1/auth/student", "", map[string]any{"className": "cse a", "rollNumber": roll})
	require.Equal(a.t, http.StatusOK, code, body)
	return body["access_token"].(string)
}

func TestAdminLogin(t *testing.T) {
	a := newAPI(t, nil)
	classID, _ := a.seed()

	code, body := a.do(http.MethodPost, "/v1/auth/admin", "", map[string]string{"className": "CSE A", "adminPin": "1234"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, classID, body["classId"])
	assert.Equal(t, "class-admin", body["role"])

	code, _ = a.do(http.MethodPost, "/v1/auth/admin", "", map[string]string{"className": "CSE A", "adminPin": "0000"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(http.MethodPost, "/v1/auth/admin", "", map[string]string{"className": "CSE A"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDuplicateClassConflicts(t *testing.T) {
	a := newAPI(t, nil)
	a.seed()
	code, _ := a.do(http.MethodPost, "/v1/classes", "", map[string]any{
		"className": "cse a", "adminPin": "1", "rollNumbers": []int{1}, "subjects": []map[string]string{{"name": "X"}},
	})
	assert.Equal(t, http.StatusConflict, code)
}

func TestRoutesRequireToken(t *testing.T) {
	a := newAPI(t, nil)
	classID, _ := a.seed()
	code, _ := a.do(http.MethodGet, "/v1/classes/"+classID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = a.do(http.MethodGet, "/v1/classes/"+classID, "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestStudentReportFlow(t *testing.T) {
	a := newAPI(t, nil)
	classID, adminTok := a.seed()

	code, body := a.do(http.MethodPost, "/v1/attendance/mark", adminTok, map[string]any{
		"classId": classID,
		"date":    "2026-01-12",
		"periods": []map[string]any{{"periodNum": 1, "subjectId": "S1", "absentRollNumbers": []any{2}}},
	})
	require.Equal(t, http.StatusOK, code, body)

	student := a.studentToken("02")
	code, body = a.do(http.MethodGet, "/v1/students/"+classID+"/2/report", student, nil)
	require.Equal(t, http.StatusOK, code, body)
	subjects := body["subjects"].([]any)
	require.Len(t, subjects, 1)
	math := subjects[0].(map[string]any)
	assert.Equal(t, "danger", math["status"])
	assert.Equal(t, float64(3), math["mustAttend"])
	assert.Equal(t, float64(1), math["totalClasses"])
	assert.Equal(t, float64(0), math["attendedClasses"])

	code, _ = a.do(http.MethodGet, "/v1/students/"+classID+"/1/report", student, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = a.do(http.MethodPost, "/v1/students/"+classID+"/2/simulate", student, map[string]any{"dates": []string{"2026-01-19"}})
	require.Equal(t, http.StatusOK, code, body)
	impacts := body["impacts"].([]any)
	require.Len(t, impacts, 1)
	assert.Equal(t, float64(1), impacts[0].(map[string]any)["classesMissed"])

	code, _ = a.do(http.MethodPost, "/v1/attendance/mark", student, map[string]any{
		"classId": classID, "date": "2026-01-13", "periods": []map[string]any{{"periodNum": 1, "subjectId": "S1"}},
	})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestMarkRejectsUnknownRoll(t *testing.T) {
	a := newAPI(t, nil)
	classID, adminTok := a.seed()
	code, _ := a.do(http.MethodPost, "/v1/attendance/mark", adminTok, map[string]any{
		"classId": classID,
		"date":    "2026-01-12",
		"periods": []map[string]any{{"periodNum": 1, "subjectId": "S1", "absentRollNumbers": []any{99}}},
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(http.MethodPost, "/v1/attendance/mark", adminTok, map[string]any{
		"classId": classID,
		"date":    "2026-01-12",
		"periods": []map[string]any{{"periodNum": 0, "subjectId": "S1"}},
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTeacherFlow(t *testing.T) {
	a := newAPI(t, nil)
	classID, adminTok := a.seed()

	teacher := map[string]string{"name": "Ada", "email": "ada@school.test", "teacherCode": "4444"}
	code, _ := a.do(http.MethodPost, "/v1/teachers", "", teacher)
	assert.Equal(t, http.StatusForbidden, code)
	code, body := a.do(http.MethodPost, "/v1/teachers", "", teacher, "X-Super-Admin-Key", "super")
	require.Equal(t, http.StatusCreated, code, body)
	teacherID := body["id"].(string)

	code, body = a.do(http.MethodPut, "/v1/classes/"+classID+"/subjects/S1/teacher", adminTok, map[string]string{"teacherId": teacherID})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Ada", body["teacherName"])

	code, body = a.do(http.MethodPost, "/v1/auth/teacher", "", map[string]string{"email": "ADA@school.test", "teacherCode": "4444"})
	require.Equal(t, http.StatusOK, code, body)
	teacherTok := body["access_token"].(string)

	code, body = a.do(http.MethodGet, "/v1/teacher/assignments", teacherTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["assignments"], 1)

	code, body = a.do(http.MethodPost, "/v1/attendance/mark", teacherTok, map[string]any{
		"classId": classID, "date": "2026-01-12",
		"periods": []map[string]any{{"periodNum": 1, "subjectId": "S1", "absentRollNumbers": []any{3}}},
	})
	require.Equal(t, http.StatusOK, code, body)
	period := body["periods"].([]any)[0].(map[string]any)
	assert.Equal(t, true, period["isVerified"])

	code, body = a.do(http.MethodGet, "/v1/classes/"+classID+"/subjects/S1/stats", teacherTok, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Len(t, body["students"], 3)

	code, _ = a.do(http.MethodGet, "/v1/teacher/assignments", adminTok, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestReportsAreRateLimited(t *testing.T) {
	a := newAPI(t, nil)
	classID, adminTok := a.seed()
	student := a.studentToken(1)
	report := map[string]string{"date": "2026-01-12", "subjectId": "S1", "issueDescription": "I was present"}

	for i := 0; i < 2; i++ {
		code, body := a.do(http.MethodPost, "/v1/classes/"+classID+"/reports", student, report)
		require.Equal(t, http.StatusCreated, code, body)
	}
	code, _ := a.do(http.MethodPost, "/v1/classes/"+classID+"/reports", student, report)
	assert.Equal(t, http.StatusTooManyRequests, code)

	code, body := a.do(http.MethodGet, "/v1/classes/"+classID+"/reports", adminTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["reports"], 2)

	code, _ = a.do(http.MethodGet, "/v1/classes/"+classID+"/reports", student, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = a.do(http.MethodGet, "/v1/classes/"+classID+"/reports/mine", student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["reports"], 2)
}

func TestDeletingLastSubjectConflicts(t *testing.T) {
	a := newAPI(t, nil)
	classID, adminTok := a.seed()
	code, body := a.do(http.MethodDelete, "/v1/classes/"+classID+"/subjects/S1", adminTok, nil)
	assert.Equal(t, http.StatusConflict, code, body)
}

func TestHealthz(t *testing.T) {
	a := newAPI(t, map[string]HealthCheck{
		"db":    func(context.Context) bool { return true },
		"redis": func(context.Context) bool { return false },
	})
	code, body := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, true, body["db"])
}

func TestSecurityHeadersAndPreflight(t *testing.T) {
	a := newAPI(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/v1/classes", nil)
	req.Header.Set("Origin", "https://app.test")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
