package tenancy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
)

// RepositoryPort abstracts persistence used by Service.
type RepositoryPort interface {
	GetOrganization(ctx context.Context, id int64) (Organization, error)
	CreateOrganization(ctx context.Context, org Organization) (Organization, error)
	UpdatePlan(ctx context.Context, id int64, plan Plan, expiresAt *time.Time) error
	FeatureOverrides(ctx context.Context, id int64) (map[FeatureKey]bool, error)
	ListOrganizationIDs(ctx context.Context) ([]int64, error)
}

// Service resolves organizations and their plan entitlements.
type Service struct {
	repo   RepositoryPort
	cache  FeatureCache
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache FeatureCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// Get loads an organization.
func (s *Service) Get(ctx context.Context, orgID int64) (Organization, error) {
	if orgID <= 0 {
		return Organization{}, ErrOrganizationNotFound
	}
	return s.repo.GetOrganization(ctx, orgID)
}

// Create registers a new organization.
func (s *Service) Create(ctx context.Context, input CreateOrganizationInput) (Organization, error) {
	name := strings.TrimSpace(input.Name)
	slug := shared.Slugify(input.Slug)
	if slug == "" {
		slug = shared.Slugify(name)
	}
	if name == "" || slug == "" {
		return Organization{}, ErrInvalidOrganization
	}
	plan := input.Plan
	if plan == "" {
		plan = PlanFree
	}
	if !plan.Valid() {
		return Organization{}, ErrUnknownPlan
	}
	return s.repo.CreateOrganization(ctx, Organization{Name: name, Slug: slug, Plan: plan, PlanExpiresAt: input.PlanExpiresAt})
}

// ChangePlan moves the organization to another plan and drops cached decisions.
func (s *Service) ChangePlan(ctx context.Context, orgID int64, plan Plan, expiresAt *time.Time) (Organization, error) {
	if !plan.Valid() {
		return Organization{}, ErrUnknownPlan
	}
	if err := s.repo.UpdatePlan(ctx, orgID, plan, expiresAt); err != nil {
		return Organization{}, err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, orgID); err != nil {
			s.logger.Warn("feature cache invalidate", slog.Int64("organization_id", orgID), slog.Any("error", err))
		}
	}
	s.logger.Info("plan changed", slog.Int64("organization_id", orgID), slog.String("plan", string(plan)))
	return s.repo.GetOrganization(ctx, orgID)
}

// HasFeature reports whether the organization may use the feature.
func (s *Service) HasFeature(ctx context.Context, orgID int64, key FeatureKey) (bool, error) {
	decision, err := s.Decide(ctx, orgID, key)
	return decision.Allowed, err
}

// Decide resolves a feature decision, consulting the cache first.
func (s *Service) Decide(ctx context.Context, orgID int64, key FeatureKey) (Decision, error) {
	if !key.Valid() {
		return Decision{}, ErrUnknownFeature
	}
	if s.cache != nil {
		decision, found, err := s.cache.Get(ctx, orgID, key)
		if err != nil {
			s.logger.Warn("feature cache get", slog.Int64("organization_id", orgID), slog.Any("error", err))
		} else if found {
			return decision, nil
		}
	}
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return Decision{}, err
	}
	overrides, err := s.repo.FeatureOverrides(ctx, orgID)
	if err != nil {
		return Decision{}, err
	}
	decision := decide(org.EffectivePlan(s.now()), overrides, key)
	if s.cache != nil {
		if err := s.cache.Set(ctx, orgID, key, decision); err != nil {
			s.logger.Warn("feature cache set", slog.Int64("organization_id", orgID), slog.Any("error", err))
		}
	}
	return decision, nil
}

func decide(plan Plan, overrides map[FeatureKey]bool, key FeatureKey) Decision {
	if enabled, ok := overrides[key]; ok {
		return Decision{Allowed: enabled, Plan: plan}
	}
	return Decision{Allowed: PlanIncludes(plan, key), Plan: plan}
}

// Features returns the complete entitlement map for the organization.
func (s *Service) Features(ctx context.Context, orgID int64) (map[FeatureKey]bool, error) {
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.repo.FeatureOverrides(ctx, orgID)
	if err != nil {
		return nil, err
	}
	plan := org.EffectivePlan(s.now())
	features := make(map[FeatureKey]bool, len(featureMinPlan))
	for _, key := range AllFeatures() {
		features[key] = decide(plan, overrides, key).Allowed
	}
	return features, nil
}

// FeatureLimit returns the quota for the organization or nil when unlimited.
func (s *Service) FeatureLimit(ctx context.Context, orgID int64, key LimitKey) (*int, error) {
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return PlanLimit(org.EffectivePlan(s.now()), key), nil
}

// CheckLimit fails with ErrLimitReached when current already meets the quota.
func (s *Service) CheckLimit(ctx context.Context, orgID int64, key LimitKey, current int) error {
	limit, err := s.FeatureLimit(ctx, orgID, key)
	if err != nil {
		return err
	}
	if limit != nil && current >= *limit {
		return fmt.Errorf("%s is %d: %w", key, *limit, ErrLimitReached)
	}
	return nil
}

// OrganizationsWithFeature lists tenants entitled to the feature.
func (s *Service) OrganizationsWithFeature(ctx context.Context, key FeatureKey) ([]int64, error) {
	ids, err := s.repo.ListOrganizationIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		ok, err := s.HasFeature(ctx, id, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}
