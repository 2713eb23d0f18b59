package interceptors

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/usecase"
)

type stubValidator struct {
	validation *usecase.TokenValidation
	err        error
	tokens     []string
}

func (s *stubValidator) ValidateToken(_ context.Context, token string) (*usecase.TokenValidation, error) {
	s.tokens = append(s.tokens, token)
	if s.err != nil {
		return nil, s.err
	}
	return s.validation, nil
}

const privateMethod = "/portal.v1.AccessService/CheckAccess"

func TestAuthInterceptorAttachesAccount(t *testing.T) {
	validator := &stubValidator{validation: &usecase.TokenValidation{Account: domain.Account{ID: "acc-123"}}}
	interceptor := NewAuthInterceptor(validator, AuthOptions{Logger: zaptest.NewLogger(t)}).UnaryServerInterceptor()

	handler := func(ctx context.Context, req any) (any, error) {
		got, found := AccountFromContext(ctx)
		if !found || got.ID != "acc-123" {
			t.Fatalf("account missing from context")
		}
		return "ok", nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer token-value"))
	info := &grpc.UnaryServerInfo{FullMethod: privateMethod}

	if _, err := interceptor(ctx, struct{}{}, info, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(validator.tokens) != 1 || validator.tokens[0] != "token-value" {
		t.Fatalf("unexpected validated tokens %v", validator.tokens)
	}
}

func TestAuthInterceptorRejectsMissingToken(t *testing.T) {
	interceptor := NewAuthInterceptor(&stubValidator{}, AuthOptions{}).UnaryServerInterceptor()

	info := &grpc.UnaryServerInfo{FullMethod: privateMethod}
	_, err := interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		t.Fatalf("handler should not be invoked")
		return nil, nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}
	if msg := status.Convert(err).Message(); msg != "NoToken" {
		t.Fatalf("expected NoToken message, got %q", msg)
	}
}

func TestAuthInterceptorRejectsNonBearerScheme(t *testing.T) {
	interceptor := NewAuthInterceptor(&stubValidator{}, AuthOptions{}).UnaryServerInterceptor()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic abc"))
	info := &grpc.UnaryServerInfo{FullMethod: privateMethod}
	if _, err := interceptor(ctx, struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		t.Fatalf("handler should not be invoked")
		return nil, nil
	}); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}
}

func TestAuthInterceptorPassesThroughAllowedMethods(t *testing.T) {
	validator := &stubValidator{err: errors.New("should not be called")}
	interceptor := NewAuthInterceptor(validator, AuthOptions{AllowMethods: []string{"/portal.v1.AccessService/ValidateToken"}}).UnaryServerInterceptor()

	info := &grpc.UnaryServerInfo{FullMethod: "/portal.v1.AccessService/ValidateToken"}
	if _, err := interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		return "pong", nil
	}); err != nil {
		t.Fatalf("expected allowed method to succeed, got %v", err)
	}
	if len(validator.tokens) != 0 {
		t.Fatalf("validator should not run for public methods")
	}
}

func TestAuthInterceptorReportsFailureCode(t *testing.T) {
	interceptor := NewAuthInterceptor(&stubValidator{err: domain.ErrTokenExpired}, AuthOptions{}).UnaryServerInterceptor()

	info := &grpc.UnaryServerInfo{FullMethod: privateMethod}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer token"))
	_, err := interceptor(ctx, struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		t.Fatalf("handler should not be invoked")
		return nil, nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated for expired token, got %v", err)
	}
	if msg := status.Convert(err).Message(); msg != "TokenExpired" {
		t.Fatalf("expected TokenExpired message, got %q", msg)
	}
}

func TestAuthInterceptorMapsStoreFailuresToInternal(t *testing.T) {
	interceptor := NewAuthInterceptor(&stubValidator{err: errors.New("db down")}, AuthOptions{}).UnaryServerInterceptor()

	info := &grpc.UnaryServerInfo{FullMethod: privateMethod}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "bearer token"))
	if _, err := interceptor(ctx, struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		return nil, nil
	}); status.Code(err) != codes.Internal {
		t.Fatalf("expected internal error, got %v", err)
	}
}
