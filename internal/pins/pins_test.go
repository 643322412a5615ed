package pins

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/hanger/internal/apperr"
	"github.com/matheus3301/hanger/internal/bus"
	"github.com/matheus3301/hanger/internal/metrics"
	"github.com/matheus3301/hanger/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*Registry, *metrics.Metrics) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"), bus.New(), nil)
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := metrics.New()
	r := NewRegistry(db, m, nil)
	ts := time.UnixMilli(1_700_000_000_000)
	r.now = func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
	return r, m
}

func waitFor(t *testing.T, ch <-chan []Pin, pred func([]Pin) bool) []Pin {
	t.Helper()
	deadline := time.After(3 * time.Second)
	var last []Pin
	for {
		select {
		case v, ok := <-ch:
			require.True(t, ok, "stream closed")
			last = v
			if pred(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("condition not reached, last snapshot %v", last)
		}
	}
}

func TestCreateValidates(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		owner    string
		lat, lng float64
		label    Label
		field    string
	}{
		{"missing owner", "", 1, 1, Shop, "owner_id"},
		{"lat too high", "u1", 91, 0, Shop, "lat"},
		{"lng too low", "u1", 0, -181, Service, "lng"},
		{"unknown label", "u1", 0, 0, Label("cafe"), "label"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Create(ctx, tt.owner, tt.lat, tt.lng, tt.label)
			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCreateDoesNotDeduplicate(t *testing.T) {
	r, m := newRegistry(t)
	ctx := context.Background()

	id1, err := r.Create(ctx, "u1", 10, 20, Shop)
	require.NoError(t, err)
	id2, err := r.Create(ctx, "u1", 10, 20, Shop)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	mine, err := r.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	expected := `
# HELP hanger_pins_created_total Map pins created.
# TYPE hanger_pins_created_total counter
hanger_pins_created_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "hanger_pins_created_total"))
}

func TestDeleteByOwner(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	id, err := r.Create(ctx, "owner", 1, 2, Service)
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, id, "owner"))
	p, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, p)

	// Already gone: a second delete is a harmless no-op.
	assert.NoError(t, r.Delete(ctx, id, "owner"))
}

func TestDeleteByOtherUserIsUnauthorized(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	id, err := r.Create(ctx, "owner", 1, 2, Shop)
	require.NoError(t, err)

	err = r.Delete(ctx, id, "intruder")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	p, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "owner", p.OwnerID)
}

func TestDeleteMissingPinIsNoop(t *testing.T) {
	r, _ := newRegistry(t)
	assert.NoError(t, r.Delete(context.Background(), "nope", "anyone"))
}

func TestListByOwnerContainsExactlyOwnersPins(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	want := map[string]bool{}
	for i := 0; i < 3; i++ {
		id, err := r.Create(ctx, "u1", float64(i), 0, Shop)
		require.NoError(t, err)
		want[id] = true
	}
	_, err := r.Create(ctx, "u2", 5, 5, Service)
	require.NoError(t, err)

	mine, err := r.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 3)
	for _, p := range mine {
		assert.True(t, want[p.ID], "unexpected pin %s", p.ID)
		assert.Equal(t, "u1", p.OwnerID)
	}
}

func TestStreamAllNewestFirst(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	ch, stop := r.StreamAll()
	defer stop()
	waitFor(t, ch, func(p []Pin) bool { return len(p) == 0 })

	first, err := r.Create(ctx, "u1", 1, 1, Shop)
	require.NoError(t, err)
	second, err := r.Create(ctx, "u2", 2, 2, Service)
	require.NoError(t, err)

	got := waitFor(t, ch, func(p []Pin) bool { return len(p) == 2 })
	assert.Equal(t, second, got[0].ID)
	assert.Equal(t, first, got[1].ID)
	assert.Equal(t, Service, got[0].Label)

	require.NoError(t, r.Delete(ctx, second, "u2"))
	got = waitFor(t, ch, func(p []Pin) bool { return len(p) == 1 })
	assert.Equal(t, first, got[0].ID)
}

func TestStreamAllIndependentSubscribers(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	a, stopA := r.StreamAll()
	defer stopA()
	// b is never read; a must still see every change.
	_, stopB := r.StreamAll()
	defer stopB()

	for i := 0; i < 5; i++ {
		_, err := r.Create(ctx, "u1", float64(i), 1, Shop)
		require.NoError(t, err)
	}
	waitFor(t, a, func(p []Pin) bool { return len(p) == 5 })
}
