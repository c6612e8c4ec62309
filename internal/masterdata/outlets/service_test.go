package outlets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
	platform "github.com/lumbung-pos/lumbung/internal/shared"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
)

type fakeRepo struct {
	outlets map[int64]Outlet
	inUse   map[int64]bool
	nextID  int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{outlets: map[int64]Outlet{}, inUse: map[int64]bool{}}
}

func (f *fakeRepo) List(ctx context.Context, filters shared.ListFilters) ([]Outlet, int, error) {
	var out []Outlet
	for _, o := range f.outlets {
		if o.OrganizationID == filters.OrganizationID {
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) Get(ctx context.Context, orgID, id int64) (Outlet, error) {
	o, ok := f.outlets[id]
	if !ok || o.OrganizationID != orgID {
		return Outlet{}, shared.ErrNotFound
	}
	return o, nil
}

func (f *fakeRepo) active(orgID int64) int {
	n := 0
	for _, o := range f.outlets {
		if o.OrganizationID == orgID && o.IsActive {
			n++
		}
	}
	return n
}

func (f *fakeRepo) Create(ctx context.Context, o Outlet, quota shared.QuotaFunc) (Outlet, error) {
	for _, existing := range f.outlets {
		if existing.OrganizationID == o.OrganizationID && existing.Code == o.Code {
			return Outlet{}, shared.ErrDuplicate
		}
	}
	if o.IsActive && quota != nil {
		if err := quota(ctx, f.active(o.OrganizationID)); err != nil {
			return Outlet{}, err
		}
	}
	f.nextID++
	o.ID = f.nextID
	f.outlets[o.ID] = o
	return o, nil
}

func (f *fakeRepo) Update(ctx context.Context, o Outlet, quota shared.QuotaFunc) (Outlet, error) {
	existing, err := f.Get(ctx, o.OrganizationID, o.ID)
	if err != nil {
		return Outlet{}, err
	}
	if o.IsActive && !existing.IsActive && quota != nil {
		if err := quota(ctx, f.active(o.OrganizationID)); err != nil {
			return Outlet{}, err
		}
	}
	f.outlets[o.ID] = o
	return o, nil
}

func (f *fakeRepo) InUse(ctx context.Context, orgID, id int64) (bool, error) {
	return f.inUse[id], nil
}

func (f *fakeRepo) Delete(ctx context.Context, orgID, id int64) error {
	delete(f.outlets, id)
	return nil
}

type planLimit struct {
	max int
}

func (p planLimit) CheckLimit(ctx context.Context, orgID int64, key tenancy.LimitKey, current int) error {
	if current >= p.max {
		return tenancy.ErrLimitReached
	}
	return nil
}

func TestCreateNormalizesAndEnforcesLimit(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, planLimit{max: 1})
	ctx := context.Background()

	created, err := svc.Create(ctx, Outlet{OrganizationID: 1, Code: " pusat 1 ", Name: "  Toko   Pusat ", IsActive: true})
	require.NoError(t, err)
	require.Equal(t, "PUSAT-1", created.Code)
	require.Equal(t, "Toko Pusat", created.Name)

	_, err = svc.Create(ctx, Outlet{OrganizationID: 1, Code: "CABANG", Name: "Cabang", IsActive: true})
	require.ErrorIs(t, err, platform.ErrFeatureUnavailable)

	_, err = svc.Create(ctx, Outlet{OrganizationID: 2, Code: "PUSAT-1", Name: "Other tenant", IsActive: true})
	require.NoError(t, err)
}

func TestInactiveOutletsDoNotUseQuota(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, planLimit{max: 1})
	ctx := context.Background()

	closed, err := svc.Create(ctx, Outlet{OrganizationID: 1, Code: "LAMA", Name: "Gudang Lama"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, Outlet{OrganizationID: 1, Code: "PUSAT", Name: "Pusat", IsActive: true})
	require.NoError(t, err)

	closed.IsActive = true
	_, err = svc.Update(ctx, closed)
	require.ErrorIs(t, err, tenancy.ErrLimitReached)
	require.False(t, repo.outlets[closed.ID].IsActive)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)
	_, err := svc.Create(context.Background(), Outlet{OrganizationID: 1, Name: "No code"})
	require.ErrorIs(t, err, platform.ErrValidation)
	_, err = svc.Create(context.Background(), Outlet{OrganizationID: 1, Code: "X"})
	require.ErrorIs(t, err, shared.ErrRequiredField)
}

func TestDeleteRefusedWhenInUse(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	o, err := svc.Create(ctx, Outlet{OrganizationID: 1, Code: "A", Name: "A"})
	require.NoError(t, err)

	repo.inUse[o.ID] = true
	err = svc.Delete(ctx, 1, o.ID)
	require.ErrorIs(t, err, ErrOutletInUse)
	require.ErrorIs(t, err, platform.ErrConflict)

	repo.inUse[o.ID] = false
	require.NoError(t, svc.Delete(ctx, 1, o.ID))
	require.ErrorIs(t, svc.Delete(ctx, 1, o.ID), platform.ErrNotFound)
}

func TestGetScopedToOrganization(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	o, err := svc.Create(context.Background(), Outlet{OrganizationID: 1, Code: "A", Name: "A"})
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), 2, o.ID)
	require.ErrorIs(t, err, platform.ErrNotFound)
	_, err = svc.Get(context.Background(), 1, 0)
	require.ErrorIs(t, err, shared.ErrInvalidID)
}
