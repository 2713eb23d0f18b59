package domain

import (
	"sort"
	"time"
)

// Resource identifies a protected subdomain resource.
type Resource string

const (
	ResourceAITRL    Resource = "ai-trl"
	ResourceLabs     Resource = "labs"
	ResourceResearch Resource = "research"
	ResourceDocs     Resource = "docs"
	ResourceBeta     Resource = "beta"
)

var knownResources = map[Resource]string{
	ResourceAITRL:    "AI technology readiness tracker",
	ResourceLabs:     "Experimental labs",
	ResourceResearch: "Research archive",
	ResourceDocs:     "Internal documentation",
	ResourceBeta:     "Beta programme",
}

// Valid reports whether the resource belongs to the closed enumeration.
func (r Resource) Valid() bool {
	_, ok := knownResources[r]
	return ok
}

// Description returns the human readable name of the resource.
func (r Resource) Description() string {
	return knownResources[r]
}

// Resources lists every known resource in stable order.
func Resources() []Resource {
	out := make([]Resource, 0, len(knownResources))
	for r := range knownResources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GrantStatus enumerates the lifecycle states of an access grant.
type GrantStatus string

const (
	GrantStatusPending  GrantStatus = "pending"
	GrantStatusApproved GrantStatus = "approved"
	GrantStatusDenied   GrantStatus = "denied"
	GrantStatusRevoked  GrantStatus = "revoked"
)

// Valid reports whether the status is one of the known values.
func (s GrantStatus) Valid() bool {
	switch s {
	case GrantStatusPending, GrantStatusApproved, GrantStatusDenied, GrantStatusRevoked:
		return true
	}
	return false
}

// AccessGrant authorizes one account for one protected resource.
type AccessGrant struct {
	ID              string
	AccountID       string
	Resource        Resource
	Status          GrantStatus
	Reason          string
	ReviewerID      *string
	ReviewerMessage *string
	ReviewedAt      *time.Time
	ExpiresAt       *time.Time
	IP              *string
	UserAgent       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive reports whether the grant currently confers access. An approved grant
// whose expiry has passed is inactive even though its status still reads approved.
func (g AccessGrant) IsActive(at time.Time) bool {
	if g.Status != GrantStatusApproved {
		return false
	}
	return g.ExpiresAt == nil || g.ExpiresAt.After(at)
}

// CanTransition reports whether moving from the current status to next is permitted.
func (g AccessGrant) CanTransition(next GrantStatus) bool {
	switch next {
	case GrantStatusApproved, GrantStatusDenied:
		return g.Status == GrantStatusPending
	case GrantStatusRevoked:
		return g.Status == GrantStatusApproved
	}
	return false
}

// GrantFilter narrows grant listing queries.
type GrantFilter struct {
	AccountID *string
	Resource  *Resource
	Status    *GrantStatus
	Limit     int
	Offset    int
}

// GrantReview captures an administrator decision on a pending grant.
type GrantReview struct {
	GrantID    string
	Status     GrantStatus
	ReviewerID string
	Message    *string
	ExpiresAt  *time.Time
	ReviewedAt time.Time
}

// GrantStat counts grants for one resource and status.
type GrantStat struct {
	Resource Resource
	Status   GrantStatus
	Count    int
}
