package gate

import (
	"net/http/httptest"
	"testing"

	"github.com/arklim/portal-identity/internal/core/domain"
)

func TestHostResolverNormalizesHosts(t *testing.T) {
	resolver, err := NewHostResolver(map[string]string{"Labs.Example.com": "labs", "docs.example.com": "DOCS"})
	if err != nil {
		t.Fatalf("NewHostResolver returned error: %v", err)
	}

	cases := map[string]domain.Resource{
		"labs.example.com":      domain.ResourceLabs,
		"LABS.example.com:8443": domain.ResourceLabs,
		"labs.example.com.":     domain.ResourceLabs,
		"docs.example.com":      domain.ResourceDocs,
	}
	for host, want := range cases {
		got, found := resolver.Resolve(host)
		if !found || got != want {
			t.Fatalf("Resolve(%q) = %q, %v", host, got, found)
		}
	}
	if _, found := resolver.Resolve("example.com"); found {
		t.Fatal("expected unknown host")
	}
	if got := resolver.Resources(); len(got) != 2 || got[0] != domain.ResourceDocs || got[1] != domain.ResourceLabs {
		t.Fatalf("unexpected resources %v", got)
	}
}

func TestHostResolverRejectsUnknownResources(t *testing.T) {
	if _, err := NewHostResolver(map[string]string{"x.example.com": "payroll"}); err == nil {
		t.Fatal("expected unknown resource error")
	}
}

func TestExtractTokenPriority(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	if token, source := ExtractToken(req); token != "header-token" || source != SourceBearer {
		t.Fatalf("expected bearer token, got %q from %q", token, source)
	}

	req.Header.Set("Cookie", AccessTokenCookie+"=cookie-token")
	if token, source := ExtractToken(req); token != "cookie-token" || source != SourceAccessCookie {
		t.Fatalf("expected access cookie, got %q from %q", token, source)
	}

	req.Header.Set("Cookie", AccessTokenCookie+"=cookie-token; "+SubdomainTokenCookie+"=sub-token")
	if token, source := ExtractToken(req); token != "sub-token" || source != SourceSubdomainCookie {
		t.Fatalf("expected subdomain cookie, got %q from %q", token, source)
	}
}

func TestExtractTokenIgnoresEmptyValues(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", SubdomainTokenCookie+"=")
	req.Header.Set("Authorization", "Bearer   ")
	if token, source := ExtractToken(req); token != "" || source != SourceNone {
		t.Fatalf("expected no token, got %q from %q", token, source)
	}

	req.Header.Set("Authorization", "Basic abc")
	if token, _ := ExtractToken(req); token != "" {
		t.Fatalf("expected basic auth to be ignored, got %q", token)
	}
}
