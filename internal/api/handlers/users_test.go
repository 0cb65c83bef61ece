package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/attendo/internal/auth"
	"github.com/your-org/attendo/internal/models"
	"github.com/your-org/attendo/internal/storage"
)

type fakeUserStore struct {
	employees map[uuid.UUID]*models.Employee
	byUser    map[string]*models.Employee
	markErr   error
	marked    []models.AttendanceStatus
}

func newFakeUserStore(emps ...*models.Employee) *fakeUserStore {
	s := &fakeUserStore{
		employees: map[uuid.UUID]*models.Employee{},
		byUser:    map[string]*models.Employee{},
	}
	for _, e := range emps {
		s.employees[e.ID] = e
		s.byUser[e.Username] = e
	}
	return s
}

func (s *fakeUserStore) GetEmployee(_ context.Context, id uuid.UUID) (*models.Employee, error) {
	return s.employees[id], nil
}

func (s *fakeUserStore) GetEmployeeByUsername(_ context.Context, username string) (*models.Employee, error) {
	return s.byUser[username], nil
}

func (s *fakeUserStore) MarkAttendance(_ context.Context, employeeID uuid.UUID, day time.Time, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	if s.markErr != nil {
		return nil, s.markErr
	}
	s.marked = append(s.marked, status)
	return &models.AttendanceRecord{
		ID:         uuid.New(),
		EmployeeID: employeeID,
		Date:       day,
		Status:     status,
		MarkedAt:   day,
	}, nil
}

func (s *fakeUserStore) ListAttendance(_ context.Context, _ uuid.UUID, _ int) ([]models.AttendanceRecord, error) {
	return nil, nil
}

func (s *fakeUserStore) UpdateEmployeePassword(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

func testEmployee() *models.Employee {
	return &models.Employee{
		ID:       uuid.New(),
		Name:     "Jane Doe",
		Username: "jdoe",
		Email:    "jdoe@example.com",
	}
}

func userTestRouter(store UserStore, cutoffHour, cutoffMinute int) (*gin.Engine, *auth.TokenManager, *auth.TokenManager) {
	gin.SetMode(gin.TestMode)

	tokens := auth.NewTokenManager([]byte("test-access-secret"), "attendo-test", time.Hour)
	assertions := auth.NewTokenManager([]byte("test-assertion-secret"), "attendo-test", time.Minute)
	h := NewUserHandler(store, nil, tokens, assertions, cutoffHour, cutoffMinute)

	r := gin.New()
	users := r.Group("/api/v1/users")
	users.POST("/face-login", h.FaceLogin)

	authed := users.Group("")
	authed.Use(auth.Middleware(tokens))
	authed.PATCH("/mark-attendance", h.MarkAttendance)

	return r, tokens, assertions
}

func markAttendance(t *testing.T, r http.Handler, tokens *auth.TokenManager, emp *models.Employee) *httptest.ResponseRecorder {
	t.Helper()
	token, err := tokens.Sign(auth.AccessToken, auth.Claims{Subject: emp.ID.String(), Role: models.RoleEmployee})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/mark-attendance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestMarkAttendanceOnce(t *testing.T) {
	emp := testEmployee()
	store := newFakeUserStore(emp)
	// Cutoff at end of day so the mark classifies as Present.
	r, tokens, _ := userTestRouter(store, 23, 59)

	rec := markAttendance(t, r, tokens, emp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != string(models.StatusPresent) {
		t.Errorf("status = %q, want Present", resp.Status)
	}
	if len(store.marked) != 1 || store.marked[0] != models.StatusPresent {
		t.Errorf("marked = %v", store.marked)
	}
}

func TestMarkAttendanceDuplicateDay(t *testing.T) {
	emp := testEmployee()
	store := newFakeUserStore(emp)
	store.markErr = storage.ErrDuplicate
	r, tokens, _ := userTestRouter(store, 23, 59)

	rec := markAttendance(t, r, tokens, emp)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestMarkAttendanceLateAfterCutoff(t *testing.T) {
	emp := testEmployee()
	store := newFakeUserStore(emp)
	// Cutoff at midnight: any real mark time is past it.
	r, tokens, _ := userTestRouter(store, 0, 0)

	rec := markAttendance(t, r, tokens, emp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(store.marked) != 1 || store.marked[0] != models.StatusLate {
		t.Errorf("marked = %v, want [Late]", store.marked)
	}
}

func TestMarkAttendanceRequiresAuth(t *testing.T) {
	r, _, _ := userTestRouter(newFakeUserStore(), 23, 59)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/mark-attendance", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestFaceLoginExchangesAssertion(t *testing.T) {
	emp := testEmployee()
	r, _, assertions := userTestRouter(newFakeUserStore(emp), 23, 59)

	assertion, err := assertions.Sign(auth.FaceAssertion, auth.Claims{Subject: emp.Username, Confidence: 0.91})
	if err != nil {
		t.Fatal(err)
	}

	payload, _ := json.Marshal(map[string]string{"assertion": assertion})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/face-login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		AccessToken string  `json:"accessToken"`
		Confidence  float64 `json:"confidence"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.AccessToken == "" {
		t.Error("expected a session token")
	}
	if resp.Confidence != 0.91 {
		t.Errorf("confidence = %v, want 0.91", resp.Confidence)
	}
}

func TestFaceLoginRejectsBadAssertion(t *testing.T) {
	r, tokens, _ := userTestRouter(newFakeUserStore(testEmployee()), 23, 59)

	// An access token is not a face assertion; the type check must reject it.
	wrong, err := tokens.Sign(auth.AccessToken, auth.Claims{Subject: "jdoe"})
	if err != nil {
		t.Fatal(err)
	}

	payload, _ := json.Marshal(map[string]string{"assertion": wrong})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/face-login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
