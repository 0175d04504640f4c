package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/epaproditus/geo-profile-dashboard/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() config.Config {
	return config.Config{
		Port:                    "8080",
		ExecuteAPIKey:           "trigger-key",
		JWTSecret:               "test-secret",
		JWTExpireHours:          24,
		SimpleMDMAPIKey:         "mdm-key",
		SimpleMDMBaseURL:        "http://127.0.0.1:0", // never dialed in these tests
		SimpleMDMTimeoutSeconds: 1,
		ExecutionWindowMinutes:  15,
		AllowedQuickProfiles:    []int{100},
	}
}

func newTestServer(t *testing.T) (chi.Router, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := testConfig()
	log := slog.Default()
	d := buildDeps(db, cfg, log)
	return newRouter(db, cfg, log, d), mock
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id":  1,
		"username": "admin",
		"role":     "admin",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestHealthAndReady(t *testing.T) {
	r, _ := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: got status %d, want 200", path, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
}

func TestProtectedRoutesRequireJWT(t *testing.T) {
	r, _ := newTestServer(t)

	for _, path := range []string{"/schedules", "/assignments", "/devices", "/logs"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: got status %d, want 401", path, rec.Code)
		}
	}
}

func TestLoginThenListSchedules(t *testing.T) {
	r, mock := newTestServer(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	mock.ExpectQuery(`SELECT id, username, COALESCE\(password_hash,''\), role\s+FROM users\s+WHERE username = \$1`).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "role"}).
			AddRow(1, "admin", string(hash), "admin"))

	rec := httptest.NewRecorder()
	loginBody := `{"username":"admin","password":"hunter2"}`
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(loginBody)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got status %d: %s", rec.Code, rec.Body.String())
	}
	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&loginResp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if loginResp.Token == "" {
		t.Fatal("no token returned")
	}

	mock.ExpectQuery(`SELECT (.+) FROM schedules\s+ORDER BY id DESC`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "profile_id", "device_filter", "schedule_type", "start_time", "end_time",
			"recurrence_pattern", "recurrence_days", "enabled", "last_executed_at", "created_at",
		}))

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/schedules", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.Token)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: got status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginBadPassword(t *testing.T) {
	r, mock := newTestServer(t)

	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	mock.ExpectQuery(`SELECT id, username, COALESCE\(password_hash,''\), role\s+FROM users\s+WHERE username = \$1`).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "role"}).
			AddRow(1, "admin", string(hash), "admin"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"admin","password":"wrong"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
}

func TestExecuteTriggerNoDueSchedules(t *testing.T) {
	r, mock := newTestServer(t)

	mock.ExpectQuery(`SELECT (.+) FROM schedules\s+WHERE enabled = true`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "profile_id", "device_filter", "schedule_type", "start_time", "end_time",
			"recurrence_pattern", "recurrence_days", "enabled", "last_executed_at", "created_at",
		}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/schedules/execute", nil)
	req.Header.Set("X-API-Key", "trigger-key")
	req.RemoteAddr = "203.0.113.9:4321"
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "No schedules to execute") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestExecuteTriggerRejectsBadKey(t *testing.T) {
	r, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/schedules/execute", nil)
	req.Header.Set("X-API-Key", "wrong")
	req.RemoteAddr = "203.0.113.9:4321"
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
}

func TestExecuteTriggerAcceptsGET(t *testing.T) {
	r, mock := newTestServer(t)

	mock.ExpectQuery(`SELECT (.+) FROM schedules\s+WHERE enabled = true`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "profile_id", "device_filter", "schedule_type", "start_time", "end_time",
			"recurrence_pattern", "recurrence_days", "enabled", "last_executed_at", "created_at",
		}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/schedules/execute", nil)
	req.Header.Set("X-API-Key", "trigger-key")
	req.RemoteAddr = "203.0.113.9:4321"
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
}
