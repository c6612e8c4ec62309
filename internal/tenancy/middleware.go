package tenancy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/lumbung-pos/lumbung/internal/platform/httpx"
	"github.com/lumbung-pos/lumbung/internal/shared"
)

// Request headers carrying tenant identity. Authentication happens upstream.
const (
	HeaderOrganizationID = "X-Organization-ID"
	HeaderActorID        = "X-Actor-ID"
	HeaderActorRole      = "X-Actor-Role"
)

// OrganizationLookup loads organizations for request scoping.
type OrganizationLookup interface {
	Get(ctx context.Context, orgID int64) (Organization, error)
}

// ResolveOrganization binds the requesting organization and actor to the context.
func ResolveOrganization(lookup OrganizationLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(HeaderOrganizationID))
			orgID, err := strconv.ParseInt(raw, 10, 64)
			if raw == "" || err != nil || orgID <= 0 {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", HeaderOrganizationID+" header must be a positive integer")
				return
			}
			var actorID int64
			if rawActor := strings.TrimSpace(r.Header.Get(HeaderActorID)); rawActor != "" {
				actorID, err = strconv.ParseInt(rawActor, 10, 64)
				if err != nil || actorID < 0 {
					httpx.Problem(w, http.StatusBadRequest, "Bad Request", HeaderActorID+" header must be an integer")
					return
				}
			}
			if _, err := lookup.Get(r.Context(), orgID); err != nil {
				if httpx.IsServerError(err) {
					logger.Error("resolve organization", slog.Int64("organization_id", orgID), slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			ctx := shared.ContextWithTenant(r.Context(), shared.Tenant{
				OrganizationID: orgID,
				ActorID:        actorID,
				Role:           strings.TrimSpace(r.Header.Get(HeaderActorRole)),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FeatureDecider resolves plan entitlements.
type FeatureDecider interface {
	Decide(ctx context.Context, orgID int64, key FeatureKey) (Decision, error)
}

// Gate guards routes behind subscription features.
type Gate struct {
	Decider FeatureDecider
	Logger  *slog.Logger
}

// RequireFeature allows the request only when the organization plan has the feature.
// It panics on unknown keys so misconfigured routes fail at startup.
func (g Gate) RequireFeature(key FeatureKey) func(http.Handler) http.Handler {
	return g.RequireAnyFeature(key)
}

// RequireAnyFeature allows the request when any of the features is available.
func (g Gate) RequireAnyFeature(keys ...FeatureKey) func(http.Handler) http.Handler {
	for _, key := range keys {
		if !key.Valid() {
			panic(fmt.Sprintf("invalid feature key: %s", key))
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			orgID := shared.OrganizationID(r.Context())
			if orgID == 0 {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "organization context required")
				return
			}
			var plan Plan
			for _, key := range keys {
				decision, err := g.Decider.Decide(r.Context(), orgID, key)
				if err != nil {
					g.logger().Error("feature check failed",
						slog.Int64("organization_id", orgID),
						slog.String("feature", string(key)),
						slog.Any("error", err))
					httpx.Problem(w, http.StatusForbidden, "Feature Unavailable", "failed to check feature availability")
					return
				}
				if decision.Allowed {
					next.ServeHTTP(w, r)
					return
				}
				plan = decision.Plan
			}
			g.logger().Info("feature access denied",
				slog.Int64("organization_id", orgID),
				slog.String("plan", string(plan)),
				slog.String("feature", string(keys[0])))
			httpx.Problem(w, http.StatusForbidden, "Feature Unavailable",
				fmt.Sprintf("feature %q is not available on plan %q", keys[0], plan))
		})
	}
}

func (g Gate) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}
