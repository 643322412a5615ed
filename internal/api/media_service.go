package api

import (
	"context"

	"github.com/matheus3301/hanger/internal/profile"
	"github.com/matheus3301/hanger/internal/rpc"
	"github.com/matheus3301/hanger/internal/upload"
)

// MediaService implements the MediaService gRPC service.
type MediaService struct {
	uploader profile.Uploader
	profiles *profile.Service
}

// NewMediaService creates a new media service.
func NewMediaService(u profile.Uploader, p *profile.Service) *MediaService {
	return &MediaService{uploader: u, profiles: p}
}

func (s *MediaService) UploadAsset(ctx context.Context, req *rpc.UploadAssetRequest) (*rpc.UploadAssetResponse, error) {
	url, err := s.uploader.Upload(ctx, assetFromRPC(req.Asset))
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.UploadAssetResponse{URL: url}, nil
}

func (s *MediaService) SaveProfile(ctx context.Context, req *rpc.SaveProfileRequest) (*rpc.ProfileResponse, error) {
	d := profile.Draft{
		Name:           req.Name,
		Nickname:       req.Nickname,
		Institute:      req.Institute,
		Location:       req.Location,
		BloodGroup:     req.BloodGroup,
		Aesthetic:      req.Aesthetic,
		Bio:            req.Bio,
		DoorKnobPreset: req.DoorKnobPreset,
	}
	if req.DoorKnob != nil {
		a := assetFromRPC(*req.DoorKnob)
		d.DoorKnob = &a
	}
	for _, c := range req.Clothing {
		d.Clothing = append(d.Clothing, profile.ClothingImage{
			Kind:  profile.ClothingKind(c.Kind),
			Asset: assetFromRPC(c.Asset),
		})
	}

	p, err := s.profiles.Save(ctx, req.UID, d)
	if err != nil {
		return nil, toStatus(err)
	}
	return profileResponse(p), nil
}

func (s *MediaService) GetProfile(ctx context.Context, req *rpc.UserRequest) (*rpc.ProfileResponse, error) {
	p, err := s.profiles.Get(ctx, req.UID)
	if err != nil {
		return nil, toStatus(err)
	}
	return profileResponse(p), nil
}

func (s *MediaService) ProfileCard(ctx context.Context, req *rpc.ProfileCardRequest) (*rpc.ProfileCardResponse, error) {
	png, err := s.profiles.Card(ctx, req.UID, req.Size)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.ProfileCardResponse{URL: s.profiles.URL(req.UID), PNG: png}, nil
}

func assetFromRPC(a rpc.Asset) upload.Asset {
	return upload.Asset{Name: a.Name, Data: a.Data}
}

func profileResponse(p *profile.Profile) *rpc.ProfileResponse {
	if p == nil {
		return &rpc.ProfileResponse{}
	}
	out := &rpc.Profile{
		UID:            p.UID,
		Name:           p.Name,
		Nickname:       p.Nickname,
		Institute:      p.Institute,
		Location:       p.Location,
		BloodGroup:     p.BloodGroup,
		Aesthetic:      p.Aesthetic,
		Bio:            p.Bio,
		DoorKnobURL:    p.DoorKnobURL,
		DoorKnobPreset: p.DoorKnobPreset,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	for _, c := range p.Clothing {
		out.Clothing = append(out.Clothing, rpc.Clothing{URL: c.URL, Kind: string(c.Kind)})
	}
	return &rpc.ProfileResponse{Found: true, Profile: out}
}
