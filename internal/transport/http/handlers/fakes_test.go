package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/transport/http/middleware"
	"github.com/arklim/portal-identity/internal/usecase"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeAuth struct {
	register func(usecase.RegisterInput) (*usecase.AuthResult, error)
	login    func(usecase.LoginInput) (*usecase.AuthResult, error)
	refresh  func(token string) (*usecase.AuthResult, error)
	accounts map[string]domain.Account

	loggedOut []string
}

func (f *fakeAuth) Register(_ context.Context, input usecase.RegisterInput) (*usecase.AuthResult, error) {
	return f.register(input)
}

func (f *fakeAuth) Login(_ context.Context, input usecase.LoginInput) (*usecase.AuthResult, error) {
	return f.login(input)
}

func (f *fakeAuth) Refresh(_ context.Context, token string, _ usecase.ClientInfo) (*usecase.AuthResult, error) {
	return f.refresh(token)
}

func (f *fakeAuth) Logout(_ context.Context, accountID string) (int, error) {
	f.loggedOut = append(f.loggedOut, accountID)
	return 1, nil
}

func (f *fakeAuth) ValidateToken(_ context.Context, token string) (*usecase.TokenValidation, error) {
	account, found := f.accounts[token]
	if !found {
		return nil, domain.ErrTokenMalformed
	}
	return &usecase.TokenValidation{
		Account:     account,
		IssuedAt:    testNow.Add(-time.Hour),
		ExpiresAt:   testNow.Add(23 * time.Hour),
		ValidatedAt: testNow,
	}, nil
}

type fakePasswords struct {
	resetErr error
	changed  []usecase.ChangePasswordInput
}

func (f *fakePasswords) RequestReset(context.Context, string, usecase.ClientInfo) error {
	return f.resetErr
}

func (f *fakePasswords) ResetPassword(context.Context, usecase.ResetPasswordInput) error {
	return nil
}

func (f *fakePasswords) ChangePassword(_ context.Context, input usecase.ChangePasswordInput) error {
	f.changed = append(f.changed, input)
	return nil
}

type fakeVerification struct {
	verified domain.Account
	err      error
}

func (f *fakeVerification) VerifyEmail(context.Context, string) (*domain.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &f.verified, nil
}

func (f *fakeVerification) ResendVerification(context.Context, string, usecase.ClientInfo) error {
	return f.err
}

type recordingMetrics struct {
	events []string
}

func (r *recordingMetrics) RecordAuth(operation, outcome string) {
	r.events = append(r.events, operation+":"+outcome)
}

func sampleAccount(id string, role domain.Role) domain.Account {
	return domain.Account{
		ID:           id,
		Email:        id + "@example.com",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Role:         role,
		IsActive:     true,
		Status:       domain.AccountStatusActive,
		ReferralCode: "REF" + id,
		RegisteredAt: testNow.Add(-24 * time.Hour),
	}
}

func sampleResult(account domain.Account, accessTTL time.Duration) *usecase.AuthResult {
	return &usecase.AuthResult{
		Account: account,
		Tokens: usecase.TokenPair{
			AccessToken:      "access-" + account.ID,
			AccessExpiresAt:  testNow.Add(accessTTL),
			RefreshToken:     "refresh-" + account.ID,
			RefreshExpiresAt: testNow.Add(7 * 24 * time.Hour),
		},
	}
}

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(middleware.EnrichContext())
	return engine
}

func doJSON(engine *gin.Engine, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range mutate {
		fn(req)
	}
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	return rr
}

func bearer(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
	return out
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
