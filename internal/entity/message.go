package entity

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/mbeoliero/parley/pkg/constant"
)

// AttachmentDescriptor is a classified, addressable reference to an
// uploaded binary. Messages hold descriptors by value.
type AttachmentDescriptor struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Kind string `json:"kind"`
	Mime string `json:"mime,omitempty"`
}

// IsValidKind reports whether kind is a known attachment kind
func IsValidKind(kind string) bool {
	switch kind {
	case constant.AttachmentKindImage, constant.AttachmentKindVideo, constant.AttachmentKindDocument:
		return true
	}
	return false
}

// Attachments is stored as a JSON array column
type Attachments []AttachmentDescriptor

// Value implements driver.Valuer
func (a Attachments) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (a *Attachments) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("attachments: unsupported column type %T", src)
	}
	if len(data) == 0 {
		*a = nil
		return nil
	}
	return json.Unmarshal(data, a)
}

// Message belongs to exactly one thread. Seq is allocated per thread and is
// the ordering key; CreatedAt never decreases along seq.
type Message struct {
	Id          int64       `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ThreadId    int64       `json:"thread_id" gorm:"column:thread_id;not null;uniqueIndex:uk_messages_thread_seq,priority:1;index:idx_messages_thread_created,priority:1"`
	Seq         int64       `json:"seq" gorm:"column:seq;not null;uniqueIndex:uk_messages_thread_seq,priority:2"`
	ClientMsgId string      `json:"client_msg_id" gorm:"column:client_msg_id;type:varchar(64);not null;uniqueIndex:uk_messages_sender_client,priority:2"`
	SenderId    int64       `json:"sender_id" gorm:"column:sender_id;not null;uniqueIndex:uk_messages_sender_client,priority:1"`
	MsgType     string      `json:"msg_type" gorm:"column:msg_type;type:varchar(16);not null"`
	Body        string      `json:"body" gorm:"column:body;type:text"`
	Attachments Attachments `json:"attachments" gorm:"column:attachments;type:json"`
	CreatedAt   int64       `json:"created_at" gorm:"column:created_at;not null;index:idx_messages_thread_created,priority:2"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// MessageInfo represents message info for API response
type MessageInfo struct {
	Id          int64                  `json:"id"`
	ThreadId    int64                  `json:"thread_id"`
	Seq         int64                  `json:"seq"`
	ClientMsgId string                 `json:"client_msg_id"`
	SenderId    int64                  `json:"sender_id"`
	MsgType     string                 `json:"msg_type"`
	Body        string                 `json:"body"`
	Attachments []AttachmentDescriptor `json:"attachments"`
	IsRead      bool                   `json:"is_read"`
	CreatedAt   int64                  `json:"created_at"`
}

// ToMessageInfo converts Message to MessageInfo. peerReadAt is the oldest
// last_read_at among participants other than the sender.
func (m *Message) ToMessageInfo(peerReadAt int64) *MessageInfo {
	attachments := []AttachmentDescriptor(m.Attachments)
	if attachments == nil {
		attachments = []AttachmentDescriptor{}
	}
	return &MessageInfo{
		Id:          m.Id,
		ThreadId:    m.ThreadId,
		Seq:         m.Seq,
		ClientMsgId: m.ClientMsgId,
		SenderId:    m.SenderId,
		MsgType:     m.MsgType,
		Body:        m.Body,
		Attachments: attachments,
		IsRead:      peerReadAt >= m.CreatedAt,
		CreatedAt:   m.CreatedAt,
	}
}

// DetectMsgType returns text for bare messages, image when every
// attachment is an image, file otherwise
func DetectMsgType(attachments []AttachmentDescriptor) string {
	if len(attachments) == 0 {
		return constant.MsgTypeText
	}
	for _, a := range attachments {
		if a.Kind != constant.AttachmentKindImage {
			return constant.MsgTypeFile
		}
	}
	return constant.MsgTypeImage
}

// BuildPreview renders the list preview of a message
func BuildPreview(body string, attachments []AttachmentDescriptor) string {
	if body != "" {
		if utf8.RuneCountInString(body) <= constant.PreviewMaxRunes {
			return body
		}
		runes := []rune(body)
		return string(runes[:constant.PreviewMaxRunes])
	}

	switch len(attachments) {
	case 0:
		return ""
	case 1:
		kind := attachments[0].Kind
		if kind == "" {
			kind = constant.AttachmentKindDocument
		}
		return "[" + strings.ToUpper(kind[:1]) + kind[1:] + "]"
	default:
		return fmt.Sprintf("[%d attachments]", len(attachments))
	}
}
