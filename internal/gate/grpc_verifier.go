package gate

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/transport/grpc/portalv1"
)

// GRPCVerifier calls portal.v1.AccessService.
type GRPCVerifier struct {
	client  portalv1.AccessServiceClient
	timeout time.Duration
}

// NewGRPCVerifier wraps an established connection.
func NewGRPCVerifier(conn grpc.ClientConnInterface, timeout time.Duration) *GRPCVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GRPCVerifier{client: portalv1.NewAccessServiceClient(conn), timeout: timeout}
}

// Validate calls ValidateToken. Rejections arrive in-band.
func (v *GRPCVerifier) Validate(ctx context.Context, token string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.client.ValidateToken(ctx, wrapperspb.String(token))
	if err != nil {
		return nil, unavailable("validate", err)
	}

	fields := resp.GetFields()
	if !fields["valid"].GetBoolValue() {
		failure := fields["error"].GetStructValue().GetFields()
		code := failure["code"].GetStringValue()
		if code == "" {
			return nil, unavailable("validate", errMissingCode)
		}
		return nil, &RejectionError{Code: code, Message: failure["message"].GetStringValue()}
	}

	user := fields["user"].GetStructValue().GetFields()
	return &Identity{
		AccountID: user["id"].GetStringValue(),
		Email:     user["email"].GetStringValue(),
		Role:      user["role"].GetStringValue(),
		ExpiresAt: parseTime(fields["expiresAt"]),
	}, nil
}

// Check calls CheckAccess with the token as bearer metadata.
func (v *GRPCVerifier) Check(ctx context.Context, token string, resource domain.Resource) (*Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	resp, err := v.client.CheckAccess(ctx, wrapperspb.String(string(resource)))
	if err != nil {
		if st, isStatus := status.FromError(err); isStatus && st.Code() == codes.Unauthenticated && st.Message() != "" {
			return nil, &RejectionError{Code: st.Message(), Message: st.Message()}
		}
		return nil, unavailable("check", err)
	}

	fields := resp.GetFields()
	return &Decision{
		Resource:  domain.Resource(fields["resource"].GetStringValue()),
		HasAccess: fields["hasAccess"].GetBoolValue(),
		Reason:    fields["reason"].GetStringValue(),
		CheckedAt: parseTime(fields["checkedAt"]),
	}, nil
}

var errMissingCode = errors.New("rejection without code")

func parseTime(value *structpb.Value) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value.GetStringValue())
	if err != nil {
		return time.Time{}
	}
	return t
}
