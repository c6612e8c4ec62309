package categories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
	platform "github.com/lumbung-pos/lumbung/internal/shared"
)

type fakeRepo struct {
	categories map[int64]Category
}

func (f *fakeRepo) List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) Get(ctx context.Context, orgID, id int64) (Category, error) {
	c, ok := f.categories[id]
	if !ok || c.OrganizationID != orgID {
		return Category{}, shared.ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) NameTaken(ctx context.Context, orgID int64, nameKey string, excludeID int64) (bool, error) {
	for _, c := range f.categories {
		if c.OrganizationID == orgID && c.ID != excludeID && shared.SearchKey(c.Name) == nameKey {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) Create(ctx context.Context, c Category) (Category, error) {
	c.ID = int64(len(f.categories) + 1)
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeRepo) Update(ctx context.Context, c Category) (Category, error) {
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeRepo) Delete(ctx context.Context, orgID, id int64) (int64, error) {
	if _, err := f.Get(ctx, orgID, id); err != nil {
		return 0, err
	}
	delete(f.categories, id)
	return 3, nil
}

func TestCategoryNameUniqueCaseInsensitive(t *testing.T) {
	svc := NewService(&fakeRepo{categories: map[int64]Category{}})
	ctx := context.Background()

	first, err := svc.Create(ctx, Category{OrganizationID: 1, Name: " Minuman  Dingin "})
	require.NoError(t, err)
	require.Equal(t, "Minuman Dingin", first.Name)

	_, err = svc.Create(ctx, Category{OrganizationID: 1, Name: "MINUMAN dingin"})
	require.ErrorIs(t, err, ErrNameTaken)
	require.ErrorIs(t, err, platform.ErrConflict)

	_, err = svc.Create(ctx, Category{OrganizationID: 2, Name: "Minuman Dingin"})
	require.NoError(t, err)

	renamed, err := svc.Update(ctx, Category{ID: first.ID, OrganizationID: 1, Name: "minuman dingin"})
	require.NoError(t, err, "renaming to the same key is allowed")
	require.Equal(t, "minuman dingin", renamed.Name)
}

func TestCategoryDelete(t *testing.T) {
	svc := NewService(&fakeRepo{categories: map[int64]Category{}})
	ctx := context.Background()
	c, err := svc.Create(ctx, Category{OrganizationID: 1, Name: "Snack"})
	require.NoError(t, err)

	_, err = svc.Delete(ctx, 2, c.ID)
	require.ErrorIs(t, err, platform.ErrNotFound)
	detached, err := svc.Delete(ctx, 1, c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), detached)
	_, err = svc.Delete(ctx, 1, 0)
	require.ErrorIs(t, err, shared.ErrInvalidID)
}
