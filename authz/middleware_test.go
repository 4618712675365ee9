package authz

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubLoader struct {
	profile *Profile
	err     error
}

func (s *stubLoader) ResolveProfile(ctx context.Context, accountID string) (*Profile, error) {
	return s.profile, s.err
}

func gatedRouter(loader ProfileLoader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := NewMiddleware(loader, nil, NewGate())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(string(ContextKeyAccountID), "acct-1")
		c.Next()
	})
	r.Use(m.ResolveProfile())
	r.Use(m.GateRoutes())
	r.GET("/staff", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestResolveProfile_LookupFailureIs503(t *testing.T) {
	loader := &stubLoader{err: fmt.Errorf("%w: connection refused", ErrLookupFailed)}
	r := gatedRouter(loader)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/staff", nil))

	// An outage must never be answered like a missing profile: no redirect
	// into onboarding, just a retryable error.
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if loc := w.Header().Get("Location"); loc != "" {
		t.Errorf("lookup failure redirected to %q, want no redirect", loc)
	}
}

func TestResolveProfile_NoProfileRedirectsToOnboarding(t *testing.T) {
	r := gatedRouter(&stubLoader{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/staff", nil))

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	if loc := w.Header().Get("Location"); !strings.HasPrefix(loc, OnboardingRoute) {
		t.Errorf("Location = %q, want %q", loc, OnboardingRoute)
	}
}

func TestResolveProfile_StaffPassesGate(t *testing.T) {
	loader := &stubLoader{profile: staffProfile("staff-1", RoleManager)}
	r := gatedRouter(loader)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/staff", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
