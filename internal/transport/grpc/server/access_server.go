package server

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/transport/grpc/interceptors"
	"github.com/arklim/portal-identity/internal/transport/grpc/portalv1"
	"github.com/arklim/portal-identity/internal/usecase"
)

// TokenValidator verifies access tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken string) (*usecase.TokenValidation, error)
}

// AccessChecker answers grant checks.
type AccessChecker interface {
	Check(ctx context.Context, account domain.Account, resource string) (*usecase.AccessCheck, error)
}

// AccessServer implements the portal.v1.AccessService gRPC contract.
type AccessServer struct {
	auth   TokenValidator
	access AccessChecker
	logger *zap.Logger
}

// NewAccessServer constructs an AccessServer instance.
func NewAccessServer(auth TokenValidator, access AccessChecker, log *zap.Logger) *AccessServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccessServer{auth: auth, access: access, logger: log}
}

// ValidateToken verifies the provided access token. Typed failures are answered in-band
// with valid=false and the failure code, mirroring the HTTP validate contract.
func (s *AccessServer) ValidateToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	validation, err := s.auth.ValidateToken(ctx, req.GetValue())
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			s.logger.Error("gRPC token validation failed", zap.Error(err))
			return nil, status.Error(codes.Internal, "failed to validate token")
		}
		message, _ := domain.MessageOf(err)
		return structpb.NewStruct(map[string]any{
			"valid": false,
			"error": map[string]any{
				"code":    domain.CodeOf(err),
				"message": message,
			},
		})
	}

	account := validation.Account
	return structpb.NewStruct(map[string]any{
		"valid": true,
		"user": map[string]any{
			"id":            account.ID,
			"email":         account.Email,
			"firstName":     account.FirstName,
			"lastName":      account.LastName,
			"role":          string(account.Role),
			"status":        string(account.Status),
			"emailVerified": account.EmailVerified,
		},
		"issuedAt":    formatTime(validation.IssuedAt),
		"expiresAt":   formatTime(validation.ExpiresAt),
		"validatedAt": formatTime(validation.ValidatedAt),
	})
}

// CheckAccess answers whether the authenticated caller holds an active grant for the resource.
func (s *AccessServer) CheckAccess(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	account, found := interceptors.AccountFromContext(ctx)
	if !found {
		return nil, status.Error(codes.Unauthenticated, domain.ErrNoToken.Code)
	}

	check, err := s.access.Check(ctx, account, req.GetValue())
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindValidation:
			message, _ := domain.MessageOf(err)
			return nil, status.Error(codes.InvalidArgument, message)
		case domain.KindInternal:
			s.logger.Error("gRPC access check failed", zap.String("account_id", account.ID), zap.Error(err))
			return nil, status.Error(codes.Internal, "failed to check access")
		}
		return nil, status.Error(codes.Unknown, domain.CodeOf(err))
	}

	return structpb.NewStruct(map[string]any{
		"resource":  string(check.Resource),
		"hasAccess": check.HasAccess,
		"reason":    check.Reason,
		"checkedAt": formatTime(check.CheckedAt),
	})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

var _ portalv1.AccessServiceServer = (*AccessServer)(nil)
