package rpc

// Request and response payloads. On the wire each one is carried as a
// google.protobuf.Struct holding its JSON form.

type Empty struct{}

// Chat

type EnsureChatRequest struct {
	SelfID  string `json:"self_id"`
	OtherID string `json:"other_id"`
}

type EnsureChatResponse struct {
	SessionID string `json:"session_id"`
}

type SendMessageRequest struct {
	SessionID string `json:"session_id"`
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
	Text      string `json:"text"`
}

type Message struct {
	ID            string `json:"id"`
	SessionID     string `json:"session_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	Text          string `json:"text"`
	CreatedAtUnix int64  `json:"created_at_unix_ms"`
}

type SendMessageResponse struct {
	Message Message `json:"message"`
}

type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type MessageList struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}

type ViewerRequest struct {
	ViewerID string `json:"viewer_id"`
}

type SessionSummary struct {
	SessionID   string `json:"session_id"`
	OtherUserID string `json:"other_user_id"`
	LastText    string `json:"last_text,omitempty"`
	LastTs      int64  `json:"last_ts,omitempty"`
	UpdatedAt   int64  `json:"updated_at"`
}

type SessionList struct {
	ViewerID string           `json:"viewer_id"`
	Sessions []SessionSummary `json:"sessions"`
}

// Pins

type Pin struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"owner_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Label     string  `json:"label"`
	CreatedAt int64   `json:"created_at"`
}

type CreatePinRequest struct {
	OwnerID string  `json:"owner_id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Label   string  `json:"label"`
}

type CreatePinResponse struct {
	PinID string `json:"pin_id"`
}

type DeletePinRequest struct {
	PinID       string `json:"pin_id"`
	RequesterID string `json:"requester_id"`
}

type OwnerRequest struct {
	OwnerID string `json:"owner_id"`
}

type PinList struct {
	Pins []Pin `json:"pins"`
}

type FavoriteRequest struct {
	ViewerID string `json:"viewer_id"`
	PinID    string `json:"pin_id"`
}

type Favorite struct {
	Pin         Pin   `json:"pin"`
	FavoritedAt int64 `json:"favorited_at"`
}

type FavoriteList struct {
	Favorites []Favorite `json:"favorites"`
}

// Media

type Asset struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

type UploadAssetRequest struct {
	Asset Asset `json:"asset"`
}

type UploadAssetResponse struct {
	URL string `json:"url"`
}

type ClothingUpload struct {
	Kind  string `json:"kind"`
	Asset Asset  `json:"asset"`
}

type SaveProfileRequest struct {
	UID            string           `json:"uid"`
	Name           string           `json:"name"`
	Nickname       string           `json:"nickname"`
	Institute      string           `json:"institute"`
	Location       string           `json:"location"`
	BloodGroup     string           `json:"blood_group"`
	Aesthetic      string           `json:"aesthetic"`
	Bio            string           `json:"bio,omitempty"`
	DoorKnob       *Asset           `json:"door_knob,omitempty"`
	DoorKnobPreset string           `json:"door_knob_preset,omitempty"`
	Clothing       []ClothingUpload `json:"clothing"`
}

type Clothing struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

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

type UserRequest struct {
	UID string `json:"uid"`
}

type ProfileResponse struct {
	Found   bool     `json:"found"`
	Profile *Profile `json:"profile,omitempty"`
}

type ProfileCardRequest struct {
	UID  string `json:"uid"`
	Size int    `json:"size,omitempty"`
}

type ProfileCardResponse struct {
	URL string `json:"url"`
	PNG []byte `json:"png"`
}
