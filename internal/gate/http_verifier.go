package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/arklim/portal-identity/internal/core/domain"
)

const (
	validatePath     = "/api/v1/auth/validate"
	checkPathPrefix  = "/api/v1/access/check/"
	maxResponseBytes = 1 << 20
)

// HTTPVerifier calls the identity service's REST endpoints.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPVerifier returns a verifier for baseURL. A nil client uses a dedicated one.
func NewHTTPVerifier(baseURL string, timeout time.Duration, client *http.Client) (*HTTPVerifier, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("gate: invalid central base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPVerifier{baseURL: parsed.String(), client: client, timeout: timeout}, nil
}

type remoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type validateBody struct {
	Success bool `json:"success"`
	User    struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
	Validation struct {
		Valid     bool      `json:"valid"`
		ExpiresAt time.Time `json:"expiresAt"`
	} `json:"validation"`
	Error *remoteError `json:"error"`
}

type checkBody struct {
	Success   bool         `json:"success"`
	Resource  string       `json:"resource"`
	HasAccess bool         `json:"hasAccess"`
	Reason    string       `json:"reason"`
	CheckedAt time.Time    `json:"checkedAt"`
	Error     *remoteError `json:"error"`
}

// Validate forwards the token to the validate endpoint.
func (v *HTTPVerifier) Validate(ctx context.Context, token string) (*Identity, error) {
	var body validateBody
	status, err := v.get(ctx, validatePath, token, &body)
	if err != nil {
		return nil, unavailable("validate", err)
	}
	if status == http.StatusOK && body.Success && body.Validation.Valid {
		return &Identity{
			AccountID: body.User.ID,
			Email:     body.User.Email,
			Role:      body.User.Role,
			ExpiresAt: body.Validation.ExpiresAt,
		}, nil
	}
	return nil, rejection("validate", status, body.Error)
}

// Check asks for the caller's grant on resource.
func (v *HTTPVerifier) Check(ctx context.Context, token string, resource domain.Resource) (*Decision, error) {
	var body checkBody
	status, err := v.get(ctx, checkPathPrefix+url.PathEscape(string(resource)), token, &body)
	if err != nil {
		return nil, unavailable("check", err)
	}
	if status == http.StatusOK && body.Success {
		return &Decision{
			Resource:  domain.Resource(body.Resource),
			HasAccess: body.HasAccess,
			Reason:    body.Reason,
			CheckedAt: body.CheckedAt,
		}, nil
	}
	return nil, rejection("check", status, body.Error)
}

func rejection(op string, status int, remote *remoteError) error {
	if (status == http.StatusUnauthorized || status == http.StatusLocked) && remote != nil && remote.Code != "" {
		return &RejectionError{Code: remote.Code, Message: remote.Message}
	}
	return unavailable(op, fmt.Errorf("unexpected status %d", status))
}

func (v *HTTPVerifier) get(ctx context.Context, path, token string, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		if resp.StatusCode == http.StatusOK {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
