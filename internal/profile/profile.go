// Package profile stores user profiles and renders their shareable QR card.
package profile

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/matheus3301/hanger/internal/apperr"
	"github.com/matheus3301/hanger/internal/store"
	"github.com/matheus3301/hanger/internal/upload"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// MinClothing is the number of clothing images a profile needs.
const MinClothing = 6

type ClothingKind string

const (
	Top    ClothingKind = "top"
	Bottom ClothingKind = "bottom"
)

// ClothingImage is a clothing picture waiting to be uploaded.
type ClothingImage struct {
	Kind  ClothingKind `json:"kind" validate:"oneof=top bottom"`
	Asset upload.Asset `json:"-"`
}

// Draft is the profile form as submitted by the user.
type Draft struct {
	Name           string          `json:"name" validate:"required"`
	Nickname       string          `json:"nickname" validate:"required"`
	Institute      string          `json:"institute" validate:"required"`
	Location       string          `json:"location" validate:"required"`
	BloodGroup     string          `json:"blood_group" validate:"required"`
	Aesthetic      string          `json:"aesthetic" validate:"required"`
	Bio            string          `json:"bio"`
	DoorKnob       *upload.Asset   `json:"-"`
	DoorKnobPreset string          `json:"door_knob_preset"`
	Clothing       []ClothingImage `json:"clothing" validate:"min=6,dive"`
}

// Clothing is an uploaded clothing picture.
type Clothing struct {
	URL  string       `json:"url"`
	Kind ClothingKind `json:"kind"`
}

// Profile is the document stored at users/{uid}.
type Profile struct {
	UID            string     `json:"uid"`
	Name           string     `json:"name"`
	Nickname       string     `json:"nickname"`
	Institute      string     `json:"institute"`
	Location       string     `json:"location"`
	BloodGroup     string     `json:"blood_group"`
	Aesthetic      string     `json:"aesthetic"`
	Bio            string     `json:"bio,omitempty"`
	DoorKnobURL    string     `json:"door_knob_url,omitempty"`
	DoorKnobPreset string     `json:"door_knob_preset,omitempty"`
	Clothing       []Clothing `json:"clothing"`
	CreatedAt      int64      `json:"created_at"`
	UpdatedAt      int64      `json:"updated_at"`
}

// Uploader turns an image into a public URL.
type Uploader interface {
	Upload(ctx context.Context, asset upload.Asset) (string, error)
}

// Service saves and reads profiles.
type Service struct {
	db       *store.DB
	uploader Uploader
	baseURL  string
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a profile service. baseURL prefixes the link encoded in
// profile cards.
func NewService(db *store.DB, u Uploader, baseURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	return &Service{
		db:       db,
		uploader: u,
		baseURL:  strings.TrimRight(baseURL, "/"),
		validate: v,
		logger:   logger,
		now:      time.Now,
	}
}

func path(uid string) string {
	return "users/" + uid
}

// Save validates d, uploads its images and merges the result into the user's
// profile document. Validation failures are returned before anything is
// uploaded.
func (s *Service) Save(ctx context.Context, uid string, d Draft) (*Profile, error) {
	if uid == "" {
		return nil, apperr.Invalid("uid", "must not be empty")
	}
	if err := s.check(d); err != nil {
		return nil, err
	}

	knobURL := ""
	if d.DoorKnob != nil && len(d.DoorKnob.Data) > 0 {
		u, err := s.uploader.Upload(ctx, *d.DoorKnob)
		if err != nil {
			return nil, fmt.Errorf("upload door knob: %w", err)
		}
		knobURL = u
	}

	clothing := make([]Clothing, 0, len(d.Clothing))
	for i, c := range d.Clothing {
		u, err := s.uploader.Upload(ctx, c.Asset)
		if err != nil {
			return nil, fmt.Errorf("upload clothing %d: %w", i+1, err)
		}
		clothing = append(clothing, Clothing{URL: u, Kind: c.Kind})
	}

	var existing Profile
	if _, err := s.db.Get(ctx, path(uid), &existing); err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	now := s.now().UnixMilli()
	patch := store.Patch{
		"uid":              uid,
		"name":             d.Name,
		"nickname":         d.Nickname,
		"institute":        d.Institute,
		"location":         d.Location,
		"blood_group":      d.BloodGroup,
		"aesthetic":        d.Aesthetic,
		"bio":              d.Bio,
		"door_knob_preset": d.DoorKnobPreset,
		"clothing":         clothing,
		"updated_at":       now,
	}
	if knobURL != "" {
		patch["door_knob_url"] = knobURL
	}
	if existing.CreatedAt == 0 {
		patch["created_at"] = now
	}
	if err := s.db.MultiUpdate(ctx, map[string]store.Patch{path(uid): patch}); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	s.logger.Info("profile saved", zap.String("uid", uid), zap.Int("clothing", len(clothing)))
	return s.Get(ctx, uid)
}

func (s *Service) check(d Draft) error {
	err := s.validate.Struct(d)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err
	}
	f := fields[0]
	switch f.Tag() {
	case "required":
		return apperr.Invalid(f.Field(), "is required")
	case "min":
		return apperr.Invalid(f.Field(), fmt.Sprintf("needs at least %s images", f.Param()))
	case "oneof":
		return apperr.Invalid(f.Field(), fmt.Sprintf("must be one of %s", f.Param()))
	}
	return apperr.Invalid(f.Field(), f.Error())
}

// Get returns the profile for uid, or nil if there is none.
func (s *Service) Get(ctx context.Context, uid string) (*Profile, error) {
	var p Profile
	found, err := s.db.Get(ctx, path(uid), &p)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

// URL is the public address of uid's profile.
func (s *Service) URL(uid string) string {
	return s.baseURL + "/" + uid
}

// Card renders a PNG QR code pointing at uid's profile.
func (s *Service) Card(ctx context.Context, uid string, size int) ([]byte, error) {
	p, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("profile %s: %w", uid, apperr.ErrNotFound)
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(s.URL(uid), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render card: %w", err)
	}
	return png, nil
}
