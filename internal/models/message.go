package models

const (
	TypeText  = "text"
	TypeImage = "image"
	TypeAudio = "audio"
	TypeVideo = "video"
	TypeFile  = "file"
)

func ValidMessageType(t string) bool {
	switch t {
	case TypeText, TypeImage, TypeAudio, TypeVideo, TypeFile:
		return true
	}
	return false
}

type Message struct {
	ID             string `json:"id"`
	ChatID         string `json:"chatId"`
	SenderID       string `json:"senderId"`
	SenderName     string `json:"senderName"`
	SenderPhotoURL string `json:"senderPhotoURL,omitempty"`
	Type           string `json:"type"`
	Content        string `json:"content"`
	MediaURL       string `json:"mediaURL,omitempty"`
	MediaName      string `json:"mediaName,omitempty"`
	MediaSize      int64  `json:"mediaSize,omitempty"`
	Timestamp      int64  `json:"timestamp"`
	IsRead         bool   `json:"isRead"`
	ReadAt         int64  `json:"readAt,omitempty"`
	IsEdited       bool   `json:"isEdited,omitempty"`
	EditedAt       int64  `json:"editedAt,omitempty"`
}

// Before gives the stable display order: timestamp first, id as the
// deterministic tie-breaker.
func (m *Message) Before(o *Message) bool {
	if m.Timestamp != o.Timestamp {
		return m.Timestamp < o.Timestamp
	}
	return m.ID < o.ID
}
