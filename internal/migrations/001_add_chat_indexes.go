package migrations

import (
	"gorm.io/gorm"
)

// Migration001AddChatIndexes adds the uniqueness and hot-path indexes the
// messaging core relies on:
// 1. conversations.direct_key unique - the atomic check-and-insert that keeps
//    at most one direct conversation per unordered user pair
// 2. message_reactions (message_id, user_id, kind) unique - one reaction row
//    per user per kind, closes the concurrent toggle race
// 3. messages (conversation_id, created_at) - ordered retrieval plus the
//    unread range count without a table scan
//
// All indexes are idempotent (IF NOT EXISTS) for safe re-runs. AutoMigrate
// creates most of these from struct tags already; this migration guarantees
// them on databases that predate the tags.
func Migration001AddChatIndexes() Migration {
	return Migration{
		ID:   "001_add_chat_indexes",
		Name: "Add chat uniqueness and performance indexes",
		Up: func(db *gorm.DB) error {
			idx1 := `
				CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_direct_key
				ON conversations (direct_key)
				WHERE direct_key IS NOT NULL
			`
			if err := db.Exec(idx1).Error; err != nil {
				return err
			}

			idx2 := `
				CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_message_reaction
				ON message_reactions (message_id, user_id, kind)
			`
			if err := db.Exec(idx2).Error; err != nil {
				return err
			}

			idx3 := `
				CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
				ON messages (conversation_id, created_at)
			`
			if err := db.Exec(idx3).Error; err != nil {
				return err
			}

			// Typing reads filter by conversation at every poll
			idx4 := `
				CREATE INDEX IF NOT EXISTS idx_typing_indicators_conversation
				ON typing_indicators (conversation_id)
			`
			return db.Exec(idx4).Error
		},
		Down: func(db *gorm.DB) error {
			for _, stmt := range []string{
				`DROP INDEX IF EXISTS idx_conversations_direct_key`,
				`DROP INDEX IF EXISTS idx_unique_message_reaction`,
				`DROP INDEX IF EXISTS idx_messages_conversation_created`,
				`DROP INDEX IF EXISTS idx_typing_indicators_conversation`,
			} {
				if err := db.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return nil
		},
	}
}
