package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pushp314/converse-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

var Redis *redis.Client
var Ctx = context.Background()

func InitRedis() {
	Redis = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       0,
	})

	_, err := Redis.Ping(Ctx).Result()
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Token revocation and presence will be disabled.", err)
	} else {
		log.Println("Connected to Redis successfully")
	}
}

// --- Token Revocation ---

// BlacklistToken stores a token's jti until its natural expiry so that
// logged-out tokens stop working immediately
func BlacklistToken(jti string, ttl time.Duration) error {
	if Redis == nil || jti == "" {
		return nil
	}
	key := fmt.Sprintf("token_blacklist:%s", jti)
	return Redis.Set(Ctx, key, "1", ttl).Err()
}

// IsTokenBlacklisted checks whether a token was revoked via logout
func IsTokenBlacklisted(jti string) bool {
	if Redis == nil || jti == "" {
		return false
	}
	key := fmt.Sprintf("token_blacklist:%s", jti)
	exists, err := Redis.Exists(Ctx, key).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

// --- Presence ---

// PresenceTTL is how long a heartbeat keeps a user "online"
const PresenceTTL = 60 * time.Second

// SetUserOnline refreshes the user's presence key
func SetUserOnline(userId string) {
	if Redis == nil {
		return
	}
	key := fmt.Sprintf("presence:%s", userId)
	if err := Redis.Set(Ctx, key, "1", PresenceTTL).Err(); err != nil {
		log.Printf("Failed to set presence for %s: %v", userId, err)
	}
}

// SetUserOffline drops the presence key immediately
func SetUserOffline(userId string) {
	if Redis == nil {
		return
	}
	key := fmt.Sprintf("presence:%s", userId)
	Redis.Del(Ctx, key)
}

// IsUserOnlineCached checks the presence key without touching Postgres
func IsUserOnlineCached(userId string) bool {
	if Redis == nil {
		return false
	}
	key := fmt.Sprintf("presence:%s", userId)
	exists, err := Redis.Exists(Ctx, key).Result()
	if err != nil {
		return false
	}
	return exists > 0
}
