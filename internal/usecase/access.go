package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
	"github.com/arklim/portal-identity/internal/infra/security"
	"github.com/arklim/portal-identity/internal/repository"
)

// Reasons returned by Check.
const (
	AccessReasonGranted  = "access granted"
	AccessReasonPending  = "access request pending review"
	AccessReasonNone     = "no access granted for this resource"
	AccessReasonInactive = "account is not active"
)

// AccessService manages access grants for protected subdomain resources.
type AccessService struct {
	grants   port.GrantRepository
	accounts port.AccountRepository
	notifier port.Notifier
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewAccessService constructs an AccessService.
func NewAccessService(
	grants port.GrantRepository,
	accounts port.AccountRepository,
	notifier port.Notifier,
	events port.EventPublisher,
	log *zap.Logger,
) *AccessService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccessService{
		grants:   grants,
		accounts: accounts,
		notifier: notifier,
		events:   events,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *AccessService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ResourceInfo describes one protected resource.
type ResourceInfo struct {
	ID          domain.Resource
	Description string
}

// SubmitAccessInput carries a new access request.
type SubmitAccessInput struct {
	AccountID string
	Resource  string
	Reason    string
	Client    ClientInfo
}

// ReviewInput carries an administrator decision.
type ReviewInput struct {
	Message   string
	ExpiresAt *time.Time
}

// AccessCheck is the authorization answer for one account and resource.
type AccessCheck struct {
	Resource  domain.Resource
	HasAccess bool
	Reason    string
	Grant     *domain.AccessGrant
	CheckedAt time.Time
}

// GrantPage is one page of a grant listing.
type GrantPage struct {
	Grants []domain.AccessGrant
	Total  int
	Limit  int
	Offset int
}

// ListResources returns the closed set of protected resources.
func (s *AccessService) ListResources() []ResourceInfo {
	resources := domain.Resources()
	out := make([]ResourceInfo, 0, len(resources))
	for _, r := range resources {
		out = append(out, ResourceInfo{ID: r, Description: r.Description()})
	}
	return out
}

// Submit files a pending request. Only one pending request per account and
// resource may exist; the database enforces it with a partial unique index.
func (s *AccessService) Submit(ctx context.Context, input SubmitAccessInput) (*domain.AccessGrant, error) {
	resource, err := parseResource(input.Resource)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if _, err := s.grants.FindActive(ctx, input.AccountID, resource, now); err == nil {
		return nil, ErrAccessGranted
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup active grant: %w", err)
	}

	grant := domain.AccessGrant{
		ID:        uuid.NewString(),
		AccountID: input.AccountID,
		Resource:  resource,
		Status:    domain.GrantStatusPending,
		Reason:    security.SanitizeFreeText(input.Reason),
		IP:        input.Client.ipPtr(),
		UserAgent: input.Client.userAgentPtr(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.grants.Create(ctx, grant); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrRequestPending
		}
		return nil, fmt.Errorf("create grant: %w", err)
	}

	s.publishChanged(ctx, grant, nil, now)
	return &grant, nil
}

// Approve moves a pending request to approved with an optional future expiry.
func (s *AccessService) Approve(ctx context.Context, actor domain.Account, grantID string, input ReviewInput) (*domain.AccessGrant, error) {
	return s.review(ctx, actor, grantID, domain.GrantStatusApproved, input)
}

// Deny moves a pending request to denied.
func (s *AccessService) Deny(ctx context.Context, actor domain.Account, grantID string, input ReviewInput) (*domain.AccessGrant, error) {
	input.ExpiresAt = nil
	return s.review(ctx, actor, grantID, domain.GrantStatusDenied, input)
}

func (s *AccessService) review(ctx context.Context, actor domain.Account, grantID string, next domain.GrantStatus, input ReviewInput) (*domain.AccessGrant, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	now := s.now().UTC()
	if input.ExpiresAt != nil && !input.ExpiresAt.After(now) {
		return nil, ErrInvalidExpiry
	}

	current, err := s.loadGrant(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if !current.CanTransition(next) {
		return nil, ErrGrantState
	}

	review := domain.GrantReview{
		GrantID:    grantID,
		Status:     next,
		ReviewerID: actor.ID,
		Message:    optional(security.SanitizeFreeText(input.Message)),
		ExpiresAt:  input.ExpiresAt,
		ReviewedAt: now,
	}
	grant, err := s.grants.Review(ctx, review)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Another reviewer decided first.
			return nil, ErrGrantState
		}
		return nil, fmt.Errorf("review grant: %w", err)
	}

	s.notifyRequester(ctx, *grant)
	s.publishChanged(ctx, *grant, &actor.ID, now)
	s.logger.Info("access request reviewed",
		zap.String("grant_id", grant.ID),
		zap.String("resource", string(grant.Resource)),
		zap.String("status", string(grant.Status)),
		zap.String("reviewer_id", actor.ID),
	)
	return grant, nil
}

// Revoke withdraws an approved grant.
func (s *AccessService) Revoke(ctx context.Context, actor domain.Account, grantID string) (*domain.AccessGrant, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	current, err := s.loadGrant(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if !current.CanTransition(domain.GrantStatusRevoked) {
		return nil, ErrGrantState
	}

	now := s.now().UTC()
	grant, err := s.grants.Revoke(ctx, grantID, actor.ID, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGrantState
		}
		return nil, fmt.Errorf("revoke grant: %w", err)
	}

	s.publishChanged(ctx, *grant, &actor.ID, now)
	return grant, nil
}

// Check answers whether the account currently holds an active grant for the resource.
func (s *AccessService) Check(ctx context.Context, account domain.Account, rawResource string) (*AccessCheck, error) {
	resource, err := parseResource(rawResource)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result := &AccessCheck{Resource: resource, CheckedAt: now}
	if !account.CanAuthenticate() {
		result.Reason = AccessReasonInactive
		return result, nil
	}

	grant, err := s.grants.FindActive(ctx, account.ID, resource, now)
	switch {
	case err == nil:
		result.HasAccess = true
		result.Reason = AccessReasonGranted
		result.Grant = grant
		return result, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("lookup active grant: %w", err)
	}

	pending := domain.GrantStatusPending
	accountID := account.ID
	_, total, err := s.grants.List(ctx, domain.GrantFilter{
		AccountID: &accountID,
		Resource:  &resource,
		Status:    &pending,
		Limit:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("lookup pending grant: %w", err)
	}
	if total > 0 {
		result.Reason = AccessReasonPending
	} else {
		result.Reason = AccessReasonNone
	}
	return result, nil
}

// ListMine returns the caller's grants, newest first.
func (s *AccessService) ListMine(ctx context.Context, accountID string, limit, offset int) (*GrantPage, error) {
	return s.list(ctx, domain.GrantFilter{AccountID: &accountID, Limit: limit, Offset: offset})
}

// ListAll returns grants matching the filter to an administrator.
func (s *AccessService) ListAll(ctx context.Context, actor domain.Account, filter domain.GrantFilter) (*GrantPage, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if filter.Resource != nil && !filter.Resource.Valid() {
		return nil, ErrUnknownResource
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.list(ctx, filter)
}

func (s *AccessService) list(ctx context.Context, filter domain.GrantFilter) (*GrantPage, error) {
	grants, total, err := s.grants.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return &GrantPage{Grants: grants, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Stats counts grants per resource and status. Every resource and status pair is
// present, zero when no grant matches.
func (s *AccessService) Stats(ctx context.Context, actor domain.Account) (map[domain.Resource]map[domain.GrantStatus]int, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	rows, err := s.grants.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("grant stats: %w", err)
	}

	statuses := []domain.GrantStatus{domain.GrantStatusPending, domain.GrantStatusApproved, domain.GrantStatusDenied, domain.GrantStatusRevoked}
	out := make(map[domain.Resource]map[domain.GrantStatus]int)
	for _, r := range domain.Resources() {
		counts := make(map[domain.GrantStatus]int, len(statuses))
		for _, st := range statuses {
			counts[st] = 0
		}
		out[r] = counts
	}
	for _, row := range rows {
		if counts, ok := out[row.Resource]; ok {
			counts[row.Status] = row.Count
		}
	}
	return out, nil
}

// Purge hard-deletes decided grants older than before.
func (s *AccessService) Purge(ctx context.Context, actor domain.Account, before time.Time) (int, error) {
	if actor.Role != domain.RoleAdmin {
		return 0, ErrForbidden
	}
	if before.IsZero() || !before.Before(s.now()) {
		return 0, ErrInvalidPurgeDate
	}

	purged, err := s.grants.Purge(ctx, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge grants: %w", err)
	}
	s.logger.Info("access grants purged", zap.Int("count", purged), zap.Time("before", before), zap.String("actor_id", actor.ID))
	return purged, nil
}

func (s *AccessService) loadGrant(ctx context.Context, grantID string) (*domain.AccessGrant, error) {
	grant, err := s.grants.GetByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("lookup grant: %w", err)
	}
	return grant, nil
}

func (s *AccessService) notifyRequester(ctx context.Context, grant domain.AccessGrant) {
	account, err := s.accounts.GetByID(ctx, grant.AccountID)
	if err != nil {
		s.logger.Warn("grant requester lookup failed", zap.String("grant_id", grant.ID), zap.Error(err))
		return
	}
	if err := s.notifier.SendGrantReviewed(ctx, *account, grant); err != nil {
		s.logger.Warn("grant review email not queued", zap.String("grant_id", grant.ID), zap.Error(err))
	}
}

func (s *AccessService) publishChanged(ctx context.Context, grant domain.AccessGrant, actorID *string, at time.Time) {
	publishEvent(s.logger, s.events, "grant changed", func() error {
		return s.events.PublishGrantChanged(ctx, domain.GrantEvent{
			GrantID:    grant.ID,
			AccountID:  grant.AccountID,
			Resource:   grant.Resource,
			Status:     grant.Status,
			ActorID:    actorID,
			OccurredAt: at,
		})
	})
}

func parseResource(raw string) (domain.Resource, error) {
	resource := domain.Resource(strings.ToLower(strings.TrimSpace(raw)))
	if !resource.Valid() {
		return "", ErrUnknownResource
	}
	return resource, nil
}
