package api

import (
	"context"
	"fmt"

	"github.com/matheus3301/hanger/internal/apperr"
	"github.com/matheus3301/hanger/internal/favorites"
	"github.com/matheus3301/hanger/internal/pins"
	"github.com/matheus3301/hanger/internal/rpc"
	"go.uber.org/zap"
)

// PinService implements the PinService gRPC service.
type PinService struct {
	registry  *pins.Registry
	favorites *favorites.Projection
	logger    *zap.Logger
}

// NewPinService creates a new pin service.
func NewPinService(r *pins.Registry, f *favorites.Projection, logger *zap.Logger) *PinService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PinService{registry: r, favorites: f, logger: logger}
}

func (s *PinService) CreatePin(ctx context.Context, req *rpc.CreatePinRequest) (*rpc.CreatePinResponse, error) {
	id, err := s.registry.Create(ctx, req.OwnerID, req.Lat, req.Lng, pins.Label(req.Label))
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.CreatePinResponse{PinID: id}, nil
}

func (s *PinService) DeletePin(ctx context.Context, req *rpc.DeletePinRequest) (*rpc.Empty, error) {
	if err := s.registry.Delete(ctx, req.PinID, req.RequesterID); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

func (s *PinService) ListPinsByOwner(ctx context.Context, req *rpc.OwnerRequest) (*rpc.PinList, error) {
	list, err := s.registry.ListByOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, toStatus(err)
	}
	return pinsToRPC(list), nil
}

func (s *PinService) WatchAllPins(_ *rpc.Empty, out rpc.Sender[rpc.PinList]) error {
	ch, stop := s.registry.StreamAll()
	return forward(out, ch, stop, pinsToRPC)
}

// AddFavorite snapshots the pin as it is now into the viewer's favorites.
func (s *PinService) AddFavorite(ctx context.Context, req *rpc.FavoriteRequest) (*rpc.Empty, error) {
	p, err := s.registry.Get(ctx, req.PinID)
	if err != nil {
		return nil, toStatus(err)
	}
	if p == nil {
		return nil, toStatus(fmt.Errorf("pin %s: %w", req.PinID, apperr.ErrNotFound))
	}
	if err := s.favorites.Add(ctx, req.ViewerID, *p); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

func (s *PinService) RemoveFavorite(ctx context.Context, req *rpc.FavoriteRequest) (*rpc.Empty, error) {
	if err := s.favorites.Remove(ctx, req.ViewerID, req.PinID); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

func (s *PinService) ListFavorites(ctx context.Context, req *rpc.ViewerRequest) (*rpc.FavoriteList, error) {
	entries, err := s.favorites.List(ctx, req.ViewerID)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &rpc.FavoriteList{Favorites: make([]rpc.Favorite, 0, len(entries))}
	for _, e := range entries {
		out.Favorites = append(out.Favorites, rpc.Favorite{Pin: pinToRPC(e.Pin()), FavoritedAt: e.CreatedAt})
	}
	return out, nil
}

func pinToRPC(p pins.Pin) rpc.Pin {
	return rpc.Pin{
		ID:        p.ID,
		OwnerID:   p.OwnerID,
		Lat:       p.Lat,
		Lng:       p.Lng,
		Label:     string(p.Label),
		CreatedAt: p.CreatedAt,
	}
}

func pinsToRPC(list []pins.Pin) *rpc.PinList {
	out := &rpc.PinList{Pins: make([]rpc.Pin, 0, len(list))}
	for _, p := range list {
		out.Pins = append(out.Pins, pinToRPC(p))
	}
	return out
}
