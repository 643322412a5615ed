// Package favorites maintains each user's saved copies of pins. An entry is a
// snapshot taken when the pin was favorited; it is not updated or removed when
// the pin itself changes or disappears.
package favorites

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/hanger/internal/apperr"
	"github.com/matheus3301/hanger/internal/pins"
	"github.com/matheus3301/hanger/internal/store"
)

// Entry is a favorite stored at users/{viewer}/favoritePins/{pin}.
type Entry struct {
	PinID     string     `json:"pin_id"`
	OwnerID   string     `json:"owner_id"`
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	Label     pins.Label `json:"label"`
	CreatedAt int64      `json:"created_at"`
}

// Pin rebuilds pin display data from the snapshot alone.
func (e Entry) Pin() pins.Pin {
	return pins.Pin{
		ID:      e.PinID,
		OwnerID: e.OwnerID,
		Lat:     e.Lat,
		Lng:     e.Lng,
		Label:   e.Label,
	}
}

// Projection reads and writes favorite entries.
type Projection struct {
	db  *store.DB
	now func() time.Time
}

// NewProjection creates a new favorites projection.
func NewProjection(db *store.DB) *Projection {
	return &Projection{db: db, now: time.Now}
}

func collection(viewerID string) string {
	return "users/" + viewerID + "/favoritePins"
}

// Add saves a snapshot of pin for viewerID, overwriting any earlier snapshot.
func (p *Projection) Add(ctx context.Context, viewerID string, pin pins.Pin) error {
	if viewerID == "" {
		return apperr.Invalid("viewer_id", "must not be empty")
	}
	if pin.ID == "" {
		return apperr.Invalid("pin_id", "must not be empty")
	}
	err := p.db.Set(ctx, collection(viewerID)+"/"+pin.ID, Entry{
		PinID:     pin.ID,
		OwnerID:   pin.OwnerID,
		Lat:       pin.Lat,
		Lng:       pin.Lng,
		Label:     pin.Label,
		CreatedAt: p.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

// Remove deletes the viewer's entry for pinID if there is one.
func (p *Projection) Remove(ctx context.Context, viewerID, pinID string) error {
	if err := p.db.Delete(ctx, collection(viewerID)+"/"+pinID); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

// List returns the viewer's entries, most recently saved first.
func (p *Projection) List(ctx context.Context, viewerID string) ([]Entry, error) {
	docs, err := p.db.Query(ctx, store.Query{Collection: collection(viewerID), OrderBy: "created_at", Desc: true})
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(docs))
	for _, d := range docs {
		var e Entry
		if err := d.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode favorite %s: %w", d.ID, err)
		}
		if e.PinID == "" {
			e.PinID = d.ID
		}
		out = append(out, e)
	}
	return out, nil
}
