package interceptors

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/usecase"
)

const (
	authorizationKey = "authorization"
	bearerPrefix     = "bearer "
)

// TokenValidator exposes the access-token verification required by the auth interceptor.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken string) (*usecase.TokenValidation, error)
}

// AuthOptions fine-tunes interceptor behaviour.
type AuthOptions struct {
	AllowMethods []string
	Logger       *zap.Logger
}

// AuthInterceptor validates incoming requests using bearer access tokens from metadata.
type AuthInterceptor struct {
	validator TokenValidator
	logger    *zap.Logger
	allow     map[string]struct{}
}

// NewAuthInterceptor constructs a new AuthInterceptor instance.
func NewAuthInterceptor(validator TokenValidator, opts AuthOptions) *AuthInterceptor {
	allow := make(map[string]struct{}, len(opts.AllowMethods))
	for _, method := range opts.AllowMethods {
		if method = strings.TrimSpace(method); method != "" {
			allow[method] = struct{}{}
		}
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &AuthInterceptor{validator: validator, logger: log, allow: allow}
}

// UnaryServerInterceptor returns a gRPC unary interceptor that enforces authentication.
// Rejections carry the validation failure code as the status message.
func (ai *AuthInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if ai == nil || ai.validator == nil {
			return handler(ctx, req)
		}

		if _, allowed := ai.allow[info.FullMethod]; allowed {
			return handler(ctx, req)
		}

		token, err := tokenFromMetadata(ctx)
		if err != nil {
			ai.logger.Warn("gRPC authentication failed", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Unauthenticated, domain.ErrNoToken.Code)
		}

		validation, err := ai.validator.ValidateToken(ctx, token)
		if err != nil {
			if domain.KindOf(err) == domain.KindInternal {
				ai.logger.Error("gRPC token validation errored", zap.String("method", info.FullMethod), zap.Error(err))
				return nil, status.Error(codes.Internal, "failed to validate access token")
			}
			ai.logger.Info("gRPC token rejected", zap.String("method", info.FullMethod), zap.String("code", domain.CodeOf(err)))
			return nil, status.Error(codes.Unauthenticated, domain.CodeOf(err))
		}

		return handler(WithAccount(ctx, validation.Account), req)
	}
}

// accountContextKey stores the authenticated account within the request context.
type accountContextKey struct{}

// WithAccount returns a derived context containing the authenticated account.
func WithAccount(ctx context.Context, account domain.Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, account)
}

// AccountFromContext extracts the authenticated account from context when available.
func AccountFromContext(ctx context.Context) (domain.Account, bool) {
	if ctx == nil {
		return domain.Account{}, false
	}
	account, found := ctx.Value(accountContextKey{}).(domain.Account)
	return account, found
}

func tokenFromMetadata(ctx context.Context) (string, error) {
	md, found := metadata.FromIncomingContext(ctx)
	if !found {
		return "", errors.New("missing metadata")
	}

	values := md.Get(authorizationKey)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return "", errors.New("authorization token required")
	}

	value := strings.TrimSpace(values[0])
	if len(value) < len(bearerPrefix) || !strings.HasPrefix(strings.ToLower(value), bearerPrefix) {
		return "", errors.New("invalid authorization header")
	}

	token := strings.TrimSpace(value[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("authorization token required")
	}

	return token, nil
}
