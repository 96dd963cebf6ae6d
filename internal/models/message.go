package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message types
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// ImageMessageCaption is the fixed content stored for image messages
const ImageMessageCaption = "📷 Photo"

// DeletedMessagePlaceholder is what every reader sees in place of a
// soft-deleted message's content
const DeletedMessagePlaceholder = "This message was deleted"

type Message struct {
	ID             string `gorm:"primaryKey;type:text" json:"id"`
	ConversationID string `gorm:"index:idx_messages_conversation_created,priority:1;type:text;not null" json:"conversationId"`
	SenderID       string `gorm:"index;type:text;not null" json:"senderId"`
	Content        string `gorm:"type:text;not null" json:"content"`

	// Message Type: text, image
	Type string `gorm:"type:text;default:'text';not null" json:"type"`

	// Blob store reference for image messages; the public URL is resolved at
	// read time, never stored
	BlobKey *string `gorm:"type:text" json:"-"`

	// Soft delete - one-way, content stays in storage but is never surfaced
	IsDeleted bool `gorm:"default:false" json:"isDeleted"`

	CreatedAt time.Time `gorm:"index:idx_messages_conversation_created,priority:2" json:"createdAt"`

	// Relations
	Sender User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// MessageReaction stores one row per (message, user, kind). Row granularity
// means concurrent toggles by different users never contend on shared state;
// the unique index closes the duplicate-insert race.
type MessageReaction struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	MessageID string    `gorm:"uniqueIndex:idx_unique_message_reaction,priority:1;type:text;not null" json:"messageId"`
	UserID    string    `gorm:"uniqueIndex:idx_unique_message_reaction,priority:2;type:text;not null" json:"userId"`
	Kind      string    `gorm:"uniqueIndex:idx_unique_message_reaction,priority:3;type:text;not null" json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *MessageReaction) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// The five reaction kinds (curated, fixed set)
var AllowedReactionKinds = []string{"thumbsUp", "heart", "laugh", "wow", "sad"}

// IsValidReactionKind checks if a kind is in the allowed set
func IsValidReactionKind(kind string) bool {
	for _, k := range AllowedReactionKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// EmptyReactionSet returns the zero-value reaction map with all five kinds
func EmptyReactionSet() map[string][]string {
	set := make(map[string][]string, len(AllowedReactionKinds))
	for _, k := range AllowedReactionKinds {
		set[k] = []string{}
	}
	return set
}
