package entity

// ConversationInfo represents a direct conversation for API response
type ConversationInfo struct {
	ConversationId     int64        `json:"conversation_id"`
	PeerUserId         int64        `json:"peer_user_id"`
	Peer               *ProfileInfo `json:"peer,omitempty"`
	IsActive           bool         `json:"is_active"`
	LastMessageAt      int64        `json:"last_message_at"`
	LastMessagePreview string       `json:"last_message_preview"`
	LastSenderId       int64        `json:"last_sender_id"`
	UnreadCount        int64        `json:"unread_count"`
	LastReadAt         int64        `json:"last_read_at"`
	CreatedAt          int64        `json:"created_at"`
}

// ToConversationInfo converts a direct thread to its API view for viewerId
func (t *ThreadWithState) ToConversationInfo(viewerId int64, peer *ProfileInfo) *ConversationInfo {
	return &ConversationInfo{
		ConversationId:     t.Id,
		PeerUserId:         t.PeerOf(viewerId),
		Peer:               peer,
		IsActive:           t.IsActive,
		LastMessageAt:      t.LastMessageAt,
		LastMessagePreview: t.LastMessagePreview,
		LastSenderId:       t.LastSenderId,
		UnreadCount:        t.UnreadCount,
		LastReadAt:         t.LastReadAt,
		CreatedAt:          t.CreatedAt,
	}
}
