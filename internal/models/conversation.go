package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation represents a chat thread between users
type Conversation struct {
	ID        string `gorm:"primaryKey;type:text" json:"id"`
	IsGroup   bool   `gorm:"default:false" json:"isGroup"`
	GroupName string `gorm:"type:text" json:"groupName,omitempty"`

	// DirectKey is the canonical order-independent participant pair for
	// non-group conversations ("minUserId:maxUserId"). The unique index on it
	// is what makes createOrGet atomic: two concurrent creates for the same
	// pair can never both insert. NULL for groups.
	DirectKey *string `gorm:"uniqueIndex;type:text" json:"-"`

	LastMessageTime time.Time `gorm:"index" json:"lastMessageTime"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	// Relations
	Participants []User    `gorm:"many2many:conversation_participants;" json:"participants,omitempty"`
	Messages     []Message `gorm:"foreignKey:ConversationID" json:"-"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// DirectConversationKey builds the canonical pair key for a 1:1 conversation.
// Symmetric: DirectConversationKey(a, b) == DirectConversationKey(b, a).
func DirectConversationKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return strings.Join([]string{userA, userB}, ":")
}

// ConversationParticipant tracks who is in a conversation
type ConversationParticipant struct {
	ConversationID string    `gorm:"primaryKey;type:text" json:"conversationId"`
	UserID         string    `gorm:"primaryKey;type:text" json:"userId"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

// ReadStatus is the per-(conversation,user) read watermark. LastReadTime only
// ever moves forward; unread counts and seen-by sets are derived from it at
// read time.
type ReadStatus struct {
	ConversationID string    `gorm:"primaryKey;type:text" json:"conversationId"`
	UserID         string    `gorm:"primaryKey;type:text" json:"userId"`
	LastReadTime   time.Time `json:"lastReadTime"`
}

// TypingIndicator is ephemeral per-(conversation,user) presence. Expired rows
// are filtered at read time, never swept.
type TypingIndicator struct {
	ConversationID string    `gorm:"primaryKey;type:text" json:"conversationId"`
	UserID         string    `gorm:"primaryKey;type:text" json:"userId"`
	ExpiresAt      time.Time `json:"expiresAt"`
}
