package models

type Chat struct {
	ID               string                     `json:"id"`
	Participants     []string                   `json:"participants"`
	ParticipantsInfo map[string]ParticipantInfo `json:"participantsInfo"`
	CreatedBy        string                     `json:"createdBy"`
	CreatedAt        int64                      `json:"createdAt"`
	LastMessage      *LastMessage               `json:"lastMessage,omitempty"`
	LastMessageAt    int64                      `json:"lastMessageAt,omitempty"`
	IsGroup          bool                       `json:"isGroup"`
	GroupName        string                     `json:"groupName,omitempty"`
	GroupPhotoURL    string                     `json:"groupPhotoURL,omitempty"`
	UnreadCount      map[string]int             `json:"unreadCount"` // participant id -> unread count
}

type ParticipantInfo struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Role        string `json:"role"`
	JoinedAt    int64  `json:"joinedAt"`
}

type LastMessage struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	Timestamp  int64  `json:"timestamp"`
}

// HasParticipant reports membership without assuming any ordering of
// the participants slice.
func (c *Chat) HasParticipant(uid string) bool {
	for _, p := range c.Participants {
		if p == uid {
			return true
		}
	}
	return false
}

// SortKey is the value chat lists are ordered by, newest first.
func (c *Chat) SortKey() int64 {
	if c.LastMessageAt != 0 {
		return c.LastMessageAt
	}
	return c.CreatedAt
}
