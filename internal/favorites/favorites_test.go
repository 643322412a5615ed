package favorites

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/hanger/internal/apperr"
	"github.com/matheus3301/hanger/internal/bus"
	"github.com/matheus3301/hanger/internal/pins"
	"github.com/matheus3301/hanger/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Projection, *pins.Registry) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"), bus.New(), nil)
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	p := NewProjection(db)
	ts := time.UnixMilli(1_700_000_000_000)
	p.now = func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
	return p, pins.NewRegistry(db, nil, nil)
}

func createPin(t *testing.T, r *pins.Registry, owner string, lat, lng float64, label pins.Label) pins.Pin {
	t.Helper()
	id, err := r.Create(context.Background(), owner, lat, lng, label)
	require.NoError(t, err)
	p, err := r.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return *p
}

func TestAddThenRemoveLeavesEmpty(t *testing.T) {
	p, r := setup(t)
	ctx := context.Background()
	pin := createPin(t, r, "owner", 12.5, 77.6, pins.Shop)

	require.NoError(t, p.Add(ctx, "viewer", pin))
	list, err := p.List(ctx, "viewer")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pin.ID, list[0].PinID)

	require.NoError(t, p.Remove(ctx, "viewer", pin.ID))
	list, err = p.List(ctx, "viewer")
	require.NoError(t, err)
	assert.Empty(t, list)

	// Removing again is a no-op.
	assert.NoError(t, p.Remove(ctx, "viewer", pin.ID))
}

func TestFavoriteSurvivesPinDeletion(t *testing.T) {
	p, r := setup(t)
	ctx := context.Background()
	pin := createPin(t, r, "owner", -33.9, 18.4, pins.Service)

	require.NoError(t, p.Add(ctx, "viewer", pin))
	require.NoError(t, r.Delete(ctx, pin.ID, "owner"))

	gone, err := r.Get(ctx, pin.ID)
	require.NoError(t, err)
	require.Nil(t, gone)

	list, err := p.List(ctx, "viewer")
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0].Pin()
	assert.Equal(t, pin.ID, got.ID)
	assert.Equal(t, "owner", got.OwnerID)
	assert.Equal(t, -33.9, got.Lat)
	assert.Equal(t, 18.4, got.Lng)
	assert.Equal(t, pins.Service, got.Label)
}

func TestAddOverwritesSnapshot(t *testing.T) {
	p, r := setup(t)
	ctx := context.Background()
	pin := createPin(t, r, "owner", 1, 1, pins.Shop)

	require.NoError(t, p.Add(ctx, "viewer", pin))
	pin.Lat, pin.Label = 2, pins.Service
	require.NoError(t, p.Add(ctx, "viewer", pin))

	list, err := p.List(ctx, "viewer")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2.0, list[0].Lat)
	assert.Equal(t, pins.Service, list[0].Label)
}

func TestListIsPerViewerNewestFirst(t *testing.T) {
	p, r := setup(t)
	ctx := context.Background()
	a := createPin(t, r, "owner", 1, 1, pins.Shop)
	b := createPin(t, r, "owner", 2, 2, pins.Shop)

	require.NoError(t, p.Add(ctx, "v1", a))
	require.NoError(t, p.Add(ctx, "v1", b))
	require.NoError(t, p.Add(ctx, "v2", a))

	list, err := p.List(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].PinID)
	assert.Equal(t, a.ID, list[1].PinID)

	list, err = p.List(ctx, "v2")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAddValidates(t *testing.T) {
	p, _ := setup(t)
	err := p.Add(context.Background(), "viewer", pins.Pin{})
	assert.True(t, apperr.IsValidation(err), "error = %v", err)
}
