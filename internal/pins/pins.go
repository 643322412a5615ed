// Package pins implements the registry of geo-located map markers.
package pins

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/hanger/internal/apperr"
	"github.com/matheus3301/hanger/internal/metrics"
	"github.com/matheus3301/hanger/internal/store"
	"go.uber.org/zap"
)

const collection = "pins"

// Label categorizes a pin.
type Label string

const (
	Shop    Label = "shop"
	Service Label = "service"
)

// Valid reports whether l is a known label.
func (l Label) Valid() bool {
	return l == Shop || l == Service
}

// Pin is a map marker stored at pins/{id}.
type Pin struct {
	ID        string  `json:"-"`
	OwnerID   string  `json:"owner_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Label     Label   `json:"label"`
	CreatedAt int64   `json:"created_at"`
}

// Registry creates, deletes and lists pins.
type Registry struct {
	db      *store.DB
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewRegistry creates a new pin registry.
func NewRegistry(db *store.DB, m *metrics.Metrics, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{db: db, metrics: m, logger: logger, now: time.Now}
}

// Create stores a new pin and returns its id. Identical pins are not deduplicated.
func (r *Registry) Create(ctx context.Context, ownerID string, lat, lng float64, label Label) (string, error) {
	switch {
	case ownerID == "":
		return "", apperr.Invalid("owner_id", "must not be empty")
	case lat < -90 || lat > 90:
		return "", apperr.Invalid("lat", fmt.Sprintf("%v out of range", lat))
	case lng < -180 || lng > 180:
		return "", apperr.Invalid("lng", fmt.Sprintf("%v out of range", lng))
	case !label.Valid():
		return "", apperr.Invalid("label", fmt.Sprintf("%q is not one of shop, service", label))
	}

	id, err := r.db.Add(ctx, collection, Pin{
		OwnerID:   ownerID,
		Lat:       lat,
		Lng:       lng,
		Label:     label,
		CreatedAt: r.now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("create pin: %w", err)
	}
	r.metrics.PinCreated()
	return id, nil
}

// Get returns the pin with the given id, or nil if it does not exist.
func (r *Registry) Get(ctx context.Context, pinID string) (*Pin, error) {
	var p Pin
	found, err := r.db.Get(ctx, collection+"/"+pinID, &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	p.ID = pinID
	return &p, nil
}

// Delete removes a pin on behalf of requesterID. A missing pin is a no-op;
// a pin owned by someone else yields apperr.ErrUnauthorized.
//
// The ownership check and the delete are separate operations. A concurrent
// delete by the owner from elsewhere only turns this call into a no-op.
func (r *Registry) Delete(ctx context.Context, pinID, requesterID string) error {
	p, err := r.Get(ctx, pinID)
	if err != nil {
		return fmt.Errorf("read pin: %w", err)
	}
	if p == nil {
		return nil
	}
	if p.OwnerID != requesterID {
		r.logger.Warn("pin delete refused", zap.String("pin_id", pinID), zap.String("requester", requesterID))
		return fmt.Errorf("delete pin %s: %w", pinID, apperr.ErrUnauthorized)
	}
	if err := r.db.Delete(ctx, collection+"/"+pinID); err != nil {
		return fmt.Errorf("delete pin: %w", err)
	}
	r.metrics.PinDeleted()
	return nil
}

// All returns every pin, newest first.
func (r *Registry) All(ctx context.Context) ([]Pin, error) {
	return r.query(ctx, store.Query{Collection: collection, OrderBy: "created_at", Desc: true})
}

// ListByOwner returns the owner's current pins. Order is unspecified.
func (r *Registry) ListByOwner(ctx context.Context, ownerID string) ([]Pin, error) {
	return r.query(ctx, store.Query{
		Collection: collection,
		Where:      []store.Filter{{Field: "owner_id", Value: ownerID}},
	})
}

// StreamAll delivers every pin, newest first, now and after every change.
// Call the returned function to stop.
func (r *Registry) StreamAll() (<-chan []Pin, func()) {
	return store.Watch(r.db, collection, r.All)
}

func (r *Registry) query(ctx context.Context, q store.Query) ([]Pin, error) {
	docs, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]Pin, 0, len(docs))
	for _, d := range docs {
		var p Pin
		if err := d.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode pin %s: %w", d.ID, err)
		}
		p.ID = d.ID
		out = append(out, p)
	}
	return out, nil
}
