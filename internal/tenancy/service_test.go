package tenancy

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/lumbung-pos/lumbung/internal/shared"
)

type memoryRepo struct {
	orgs      map[int64]Organization
	overrides map[int64]map[FeatureKey]bool
	nextID    int64
	gets      int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orgs: map[int64]Organization{}, overrides: map[int64]map[FeatureKey]bool{}}
}

func (r *memoryRepo) GetOrganization(ctx context.Context, id int64) (Organization, error) {
	r.gets++
	org, ok := r.orgs[id]
	if !ok {
		return Organization{}, ErrOrganizationNotFound
	}
	return org, nil
}

func (r *memoryRepo) CreateOrganization(ctx context.Context, org Organization) (Organization, error) {
	for _, existing := range r.orgs {
		if existing.Slug == org.Slug {
			return Organization{}, ErrDuplicateSlug
		}
	}
	r.nextID++
	org.ID = r.nextID
	org.CreatedAt = time.Now()
	org.UpdatedAt = org.CreatedAt
	r.orgs[org.ID] = org
	return org, nil
}

func (r *memoryRepo) UpdatePlan(ctx context.Context, id int64, plan Plan, expiresAt *time.Time) error {
	org, ok := r.orgs[id]
	if !ok {
		return ErrOrganizationNotFound
	}
	org.Plan = plan
	org.PlanExpiresAt = expiresAt
	r.orgs[id] = org
	return nil
}

func (r *memoryRepo) FeatureOverrides(ctx context.Context, id int64) (map[FeatureKey]bool, error) {
	return r.overrides[id], nil
}

func (r *memoryRepo) ListOrganizationIDs(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(r.orgs))
	for id := int64(1); id <= r.nextID; id++ {
		if _, ok := r.orgs[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := newMemoryRepo()
	return NewService(repo, NewRedisFeatureCache(client, time.Minute), discardLogger()), repo, mr
}

func TestPlanMatrix(t *testing.T) {
	require.False(t, PlanIncludes(PlanFree, FeatureStockOpname))
	require.True(t, PlanIncludes(PlanBasic, FeatureStockOpname))
	require.False(t, PlanIncludes(PlanBasic, FeaturePurchaseOrders))
	require.True(t, PlanIncludes(PlanPro, FeaturePurchaseOrders))
	require.True(t, PlanIncludes(PlanEnterprise, FeatureMultiOutlet))
	require.False(t, PlanIncludes(PlanEnterprise, FeatureKey("teleport")))

	require.Equal(t, 1, *PlanLimit(PlanFree, LimitOutlets))
	require.Equal(t, 10000, *PlanLimit(PlanPro, LimitProducts))
	require.Nil(t, PlanLimit(PlanEnterprise, LimitOutlets))
}

func TestCreateNormalisesSlug(t *testing.T) {
	svc, _, _ := newTestService(t)
	org, err := svc.Create(context.Background(), CreateOrganizationInput{Name: " Warung Bu Sri "})
	require.NoError(t, err)
	require.Equal(t, "warung-bu-sri", org.Slug)
	require.Equal(t, PlanFree, org.Plan)

	_, err = svc.Create(context.Background(), CreateOrganizationInput{Name: "X", Plan: "platinum"})
	require.ErrorIs(t, err, ErrUnknownPlan)

	_, err = svc.Create(context.Background(), CreateOrganizationInput{Name: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), CreateOrganizationInput{Name: "Warung Lain", Slug: "Warung Bu Sri"})
	require.ErrorIs(t, err, ErrDuplicateSlug)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestHasFeatureUsesCacheAndInvalidatesOnPlanChange(t *testing.T) {
	svc, repo, mr := newTestService(t)
	ctx := context.Background()
	org, err := svc.Create(ctx, CreateOrganizationInput{Name: "Toko A", Plan: PlanBasic})
	require.NoError(t, err)

	ok, err := svc.HasFeature(ctx, org.ID, FeaturePurchaseOrders)
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, mr.Exists(featureCacheKey(org.ID)))

	before := repo.gets
	ok, err = svc.HasFeature(ctx, org.ID, FeaturePurchaseOrders)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, before, repo.gets, "second lookup must be served from cache")

	_, err = svc.ChangePlan(ctx, org.ID, PlanPro, nil)
	require.NoError(t, err)
	require.False(t, mr.Exists(featureCacheKey(org.ID)))

	ok, err = svc.HasFeature(ctx, org.ID, FeaturePurchaseOrders)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExpiredPlanFallsBackToFree(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	expired := time.Now().Add(-time.Hour)
	org, err := svc.Create(ctx, CreateOrganizationInput{Name: "Lapsed", Plan: PlanEnterprise, PlanExpiresAt: &expired})
	require.NoError(t, err)

	decision, err := svc.Decide(ctx, org.ID, FeatureAdvancedReports)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, PlanFree, decision.Plan)

	limit, err := svc.FeatureLimit(ctx, org.ID, LimitOutlets)
	require.NoError(t, err)
	require.Equal(t, 1, *limit)
}

func TestOverridesWinOverMatrix(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	org, err := svc.Create(ctx, CreateOrganizationInput{Name: "Pilot", Plan: PlanFree})
	require.NoError(t, err)
	repo.overrides[org.ID] = map[FeatureKey]bool{FeatureAdvancedReports: true}

	features, err := svc.Features(ctx, org.ID)
	require.NoError(t, err)
	require.True(t, features[FeatureAdvancedReports])
	require.False(t, features[FeaturePurchaseOrders])
	require.Len(t, features, len(AllFeatures()))
}

func TestCheckLimit(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	org, err := svc.Create(ctx, CreateOrganizationInput{Name: "Kecil"})
	require.NoError(t, err)

	require.NoError(t, svc.CheckLimit(ctx, org.ID, LimitOutlets, 0))
	err = svc.CheckLimit(ctx, org.ID, LimitOutlets, 1)
	require.ErrorIs(t, err, ErrLimitReached)
	require.ErrorIs(t, err, shared.ErrFeatureUnavailable)
}

func TestUnknownFeatureRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.HasFeature(context.Background(), 1, FeatureKey("nope"))
	require.ErrorIs(t, err, ErrUnknownFeature)
}

func TestOrganizationsWithFeature(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	a, _ := svc.Create(ctx, CreateOrganizationInput{Name: "A", Plan: PlanFree})
	b, _ := svc.Create(ctx, CreateOrganizationInput{Name: "B", Plan: PlanBasic})
	c, _ := svc.Create(ctx, CreateOrganizationInput{Name: "C", Plan: PlanPro})

	ids, err := svc.OrganizationsWithFeature(ctx, FeatureLowStockAlerts)
	require.NoError(t, err)
	require.Equal(t, []int64{b.ID, c.ID}, ids)
	require.NotContains(t, ids, a.ID)
}
