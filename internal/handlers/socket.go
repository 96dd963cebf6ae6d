package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/pushp314/converse-backend/internal/database"
	"github.com/pushp314/converse-backend/internal/models"
	"github.com/pushp314/converse-backend/pkg/logger"
	"github.com/pushp314/converse-backend/pkg/utils"
)

var SocketServer *socketio.Server

// Presence tracking
var (
	onlineUsers   = make(map[string]string) // userId -> socketId
	onlineUsersMu sync.RWMutex
)

// GetOnlineUsers returns list of online user IDs
func GetOnlineUsers() []string {
	onlineUsersMu.RLock()
	defer onlineUsersMu.RUnlock()

	users := make([]string, 0, len(onlineUsers))
	for userId := range onlineUsers {
		users = append(users, userId)
	}
	return users
}

// BroadcastToUser emits an event into a user's personal room
func BroadcastToUser(userId, event string, data map[string]interface{}) {
	if SocketServer != nil {
		SocketServer.BroadcastToRoom("/", userId, event, data)
	}
}

// notifyParticipants fans an event out to every participant of a
// conversation except the given user (empty string means everyone)
func notifyParticipants(conversationId, exceptUserId, event string, data map[string]interface{}) {
	if SocketServer == nil {
		return
	}
	for _, id := range participantIDs(conversationId) {
		if id != exceptUserId {
			SocketServer.BroadcastToRoom("/", id, event, data)
		}
	}
}

// participantIDs returns the user ids in a conversation
func participantIDs(conversationId string) []string {
	var ids []string
	database.DB.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", conversationId).
		Pluck("user_id", &ids)
	return ids
}

func InitSocketServer() *socketio.Server {
	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
			&polling.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
		},
	})

	server.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext("")
		url := s.URL()

		// Token comes via query param - most reliable for the ws handshake
		token := url.Query().Get("token")
		if token == "" {
			token = url.Query().Get("auth_token") // Fallback
		}
		if token == "" {
			logger.Warn().Str("socket_id", s.ID()).Msg("Socket connection rejected: no token")
			return fmt.Errorf("authentication required")
		}

		claims, err := utils.ValidateToken(token)
		if err != nil {
			logger.Warn().Str("socket_id", s.ID()).Msg("Socket connection rejected: invalid token")
			return fmt.Errorf("invalid token")
		}

		userId := claims.UserID
		s.SetContext(userId)

		onlineUsersMu.Lock()
		onlineUsers[userId] = s.ID()
		onlineUsersMu.Unlock()

		// Personal room for message/read/reaction fanout
		s.Join(userId)

		database.DB.Model(&models.User{}).Where("id = ?", userId).
			Updates(map[string]interface{}{"is_online": true, "last_seen": time.Now()})
		database.SetUserOnline(userId)

		s.Emit("online_users", GetOnlineUsers())
		return nil
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		userId, _ := s.Context().(string)
		if userId == "" {
			return
		}

		onlineUsersMu.Lock()
		delete(onlineUsers, userId)
		onlineUsersMu.Unlock()

		database.DB.Model(&models.User{}).Where("id = ?", userId).
			Updates(map[string]interface{}{"is_online": false, "last_seen": time.Now()})
		database.SetUserOffline(userId)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		logger.Error().Err(e).Msg("Socket error")
	})

	go func() {
		if err := server.Serve(); err != nil {
			logger.Error().Err(err).Msg("Socket.io listen error")
		}
	}()

	SocketServer = server
	return server
}

// SocketHandler wraps the socket.io server for gin routes
func SocketHandler(server *socketio.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		server.ServeHTTP(c.Writer, c.Request)
	}
}
