// Package gate guards the portal's protected subdomains. Each request is mapped to a
// resource by host, authenticated against the central identity service and proxied
// upstream only when the caller holds an active grant.
package gate

import (
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/arklim/portal-identity/internal/core/domain"
)

// HostResolver maps request hosts to protected resources through a static table.
type HostResolver struct {
	hosts map[string]domain.Resource
}

// NewHostResolver validates the table. Hosts are matched case-insensitively without port.
func NewHostResolver(table map[string]string) (*HostResolver, error) {
	hosts := make(map[string]domain.Resource, len(table))
	for host, raw := range table {
		resource := domain.Resource(strings.ToLower(strings.TrimSpace(raw)))
		if !resource.Valid() {
			return nil, fmt.Errorf("gate: host %q maps to unknown resource %q", host, raw)
		}
		hosts[normalizeHost(host)] = resource
	}
	return &HostResolver{hosts: hosts}, nil
}

// Resolve returns the resource served under host.
func (r *HostResolver) Resolve(host string) (domain.Resource, bool) {
	if r == nil {
		return "", false
	}
	resource, found := r.hosts[normalizeHost(host)]
	return resource, found
}

// Resources lists the distinct resources in the table, sorted.
func (r *HostResolver) Resources() []domain.Resource {
	seen := make(map[domain.Resource]struct{}, len(r.hosts))
	out := make([]domain.Resource, 0, len(r.hosts))
	for _, resource := range r.hosts {
		if _, dup := seen[resource]; dup {
			continue
		}
		seen[resource] = struct{}{}
		out = append(out, resource)
	}
	slices.Sort(out)
	return out
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(strings.ToLower(host), ".")
}
