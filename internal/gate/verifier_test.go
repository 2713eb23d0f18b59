package gate

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/arklim/portal-identity/internal/core/domain"
	transportgrpc "github.com/arklim/portal-identity/internal/transport/grpc"
	"github.com/arklim/portal-identity/internal/usecase"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func centralStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, body any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
	mux.HandleFunc(validatePath, func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			writeJSON(w, http.StatusOK, map[string]any{
				"success":    true,
				"user":       map[string]any{"id": "acc-1", "email": "ada@example.com", "role": "user"},
				"validation": map[string]any{"valid": true, "expiresAt": testNow.Add(time.Hour)},
			})
		case "Bearer expired":
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   map[string]any{"code": "TokenExpired", "message": "token expired"},
			})
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})
	mux.HandleFunc(checkPathPrefix+"labs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true, "resource": "labs", "hasAccess": true, "reason": "access granted", "checkedAt": testNow,
		})
	})
	mux.HandleFunc(checkPathPrefix+"docs", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestHTTPVerifierValidate(t *testing.T) {
	server := centralStub(t)
	verifier, err := NewHTTPVerifier(server.URL+"/", time.Second, server.Client())
	if err != nil {
		t.Fatalf("NewHTTPVerifier returned error: %v", err)
	}

	identity, err := verifier.Validate(context.Background(), "good")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if identity.AccountID != "acc-1" || identity.Role != "user" || !identity.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("unexpected identity %+v", identity)
	}

	_, err = verifier.Validate(context.Background(), "expired")
	var rejected *RejectionError
	if !errors.As(err, &rejected) || rejected.Code != "TokenExpired" {
		t.Fatalf("expected TokenExpired rejection, got %v", err)
	}

	if _, err := verifier.Validate(context.Background(), "other"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable for bad gateway, got %v", err)
	}
}

func TestHTTPVerifierCheckAndTimeout(t *testing.T) {
	server := centralStub(t)
	verifier, err := NewHTTPVerifier(server.URL, 50*time.Millisecond, server.Client())
	if err != nil {
		t.Fatalf("NewHTTPVerifier returned error: %v", err)
	}

	decision, err := verifier.Check(context.Background(), "good", domain.ResourceLabs)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if !decision.HasAccess || decision.Resource != domain.ResourceLabs || !decision.CheckedAt.Equal(testNow) {
		t.Fatalf("unexpected decision %+v", decision)
	}

	if _, err := verifier.Check(context.Background(), "good", domain.ResourceDocs); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected timeout to be unavailable, got %v", err)
	}
}

func TestHTTPVerifierUnreachable(t *testing.T) {
	verifier, err := NewHTTPVerifier("http://127.0.0.1:1", time.Second, nil)
	if err != nil {
		t.Fatalf("NewHTTPVerifier returned error: %v", err)
	}
	if _, err := verifier.Validate(context.Background(), "good"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := NewHTTPVerifier("not a url", time.Second, nil); err == nil {
		t.Fatal("expected invalid base url error")
	}
}

type grpcAuth struct{}

func (grpcAuth) ValidateToken(_ context.Context, token string) (*usecase.TokenValidation, error) {
	if token != "good" {
		return nil, domain.ErrTokenMalformed
	}
	return &usecase.TokenValidation{
		Account:     domain.Account{ID: "acc-1", Email: "ada@example.com", Role: domain.RoleAdmin},
		ExpiresAt:   testNow.Add(time.Hour),
		ValidatedAt: testNow,
	}, nil
}

type grpcAccess struct{}

func (grpcAccess) Check(_ context.Context, _ domain.Account, resource string) (*usecase.AccessCheck, error) {
	return &usecase.AccessCheck{Resource: domain.Resource(resource), Reason: usecase.AccessReasonPending, CheckedAt: testNow}, nil
}

func TestGRPCVerifierAgainstServer(t *testing.T) {
	srv, err := transportgrpc.NewServer(transportgrpc.ServerDependencies{
		Auth:   grpcAuth{},
		Access: grpcAccess{},
		Logger: zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}
	listener := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return listener.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	verifier := NewGRPCVerifier(conn, time.Second)

	identity, err := verifier.Validate(context.Background(), "good")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if identity.AccountID != "acc-1" || identity.Role != "admin" {
		t.Fatalf("unexpected identity %+v", identity)
	}

	_, err = verifier.Validate(context.Background(), "bad")
	var rejected *RejectionError
	if !errors.As(err, &rejected) || rejected.Code != "TokenMalformed" {
		t.Fatalf("expected TokenMalformed rejection, got %v", err)
	}

	decision, err := verifier.Check(context.Background(), "good", domain.ResourceLabs)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if decision.HasAccess || decision.Reason != usecase.AccessReasonPending {
		t.Fatalf("unexpected decision %+v", decision)
	}

	_, err = verifier.Check(context.Background(), "bad", domain.ResourceLabs)
	if !errors.As(err, &rejected) || rejected.Code != "TokenMalformed" {
		t.Fatalf("expected rejection from check, got %v", err)
	}
}
