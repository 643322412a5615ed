package chat

// Session is the metadata record stored at chats/{id}.
type Session struct {
	ID           string          `json:"-"`
	CreatedAt    int64           `json:"created_at"`
	Participants map[string]bool `json:"participants"`
}

// Message is an immutable chat message stored at chats/{session}/messages/{id}.
type Message struct {
	ID        string `json:"-"`
	SessionID string `json:"-"`
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}

// Summary is a viewer's denormalized preview of one session, stored at
// userChats/{viewer}/{session}. It trails the messages it summarizes: a
// message can be durable before its summary fields are updated.
type Summary struct {
	SessionID   string `json:"session_id"`
	OtherUserID string `json:"other_user_id"`
	LastText    string `json:"last_text,omitempty"`
	LastTs      int64  `json:"last_ts,omitempty"`
	UpdatedAt   int64  `json:"updated_at"`
}

// touched is the sort key for a viewer's session list.
func (s Summary) touched() int64 {
	if s.LastTs > s.UpdatedAt {
		return s.LastTs
	}
	return s.UpdatedAt
}

func sessionPath(id string) string {
	return "chats/" + id
}

func messagesPath(sessionID string) string {
	return "chats/" + sessionID + "/messages"
}

func summariesPath(viewerID string) string {
	return "userChats/" + viewerID
}

func summaryPath(viewerID, sessionID string) string {
	return summariesPath(viewerID) + "/" + sessionID
}
