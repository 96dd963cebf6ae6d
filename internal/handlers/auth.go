package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pushp314/converse-backend/internal/config"
	"github.com/pushp314/converse-backend/internal/database"
	"github.com/pushp314/converse-backend/internal/models"
	"github.com/pushp314/converse-backend/pkg/logger"
	"github.com/pushp314/converse-backend/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

// Sign-in is delegated entirely to the OAuth providers; this service never
// sees or stores credentials. A successful callback syncs the provider
// profile onto the local User row and issues a session JWT.

var (
	googleOauthConfig *oauth2.Config
	githubOauthConfig *oauth2.Config
)

func InitOAuthConfig() {
	if config.AppConfig.GoogleClientID != "" {
		googleOauthConfig = &oauth2.Config{
			RedirectURL:  config.AppConfig.GoogleCallbackURL,
			ClientID:     config.AppConfig.GoogleClientID,
			ClientSecret: config.AppConfig.GoogleClientSecret,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
			Endpoint:     google.Endpoint,
		}
	} else {
		logger.Warn().Msg("Google OAuth keys missing")
	}

	if config.AppConfig.GithubClientID != "" {
		githubOauthConfig = &oauth2.Config{
			RedirectURL:  config.AppConfig.GithubCallbackURL,
			ClientID:     config.AppConfig.GithubClientID,
			ClientSecret: config.AppConfig.GithubClientSecret,
			Scopes:       []string{"user:email", "read:user"},
			Endpoint:     github.Endpoint,
		}
	} else {
		logger.Warn().Msg("GitHub OAuth keys missing")
	}
}

// Google
func GoogleLogin(c *gin.Context) {
	if googleOauthConfig == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google OAuth not configured"})
		return
	}
	url := googleOauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	c.Redirect(http.StatusTemporaryRedirect, url)
}

func GoogleCallback(c *gin.Context) {
	if googleOauthConfig == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google OAuth not configured"})
		return
	}

	code := c.Query("code")
	token, err := googleOauthConfig.Exchange(context.Background(), code)
	if err != nil {
		logger.Error().Err(err).Msg("Google OAuth exchange failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to exchange token: " + err.Error()})
		return
	}

	client := googleOauthConfig.Client(context.Background(), token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get Google user info")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user info"})
		return
	}
	defer resp.Body.Close()

	var userInfo struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		logger.Error().Err(err).Msg("Failed to parse Google user info")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse user info"})
		return
	}

	user := handleOAuthLogin(c, "google:"+userInfo.ID, userInfo.Email, userInfo.Name, userInfo.Picture)
	if user != nil {
		finishOAuthLogin(c, user)
	}
}

// GitHub
func GithubLogin(c *gin.Context) {
	if githubOauthConfig == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "GitHub OAuth not configured"})
		return
	}
	url := githubOauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	c.Redirect(http.StatusTemporaryRedirect, url)
}

func GithubCallback(c *gin.Context) {
	if githubOauthConfig == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "GitHub OAuth not configured"})
		return
	}

	code := c.Query("code")
	token, err := githubOauthConfig.Exchange(context.Background(), code)
	if err != nil {
		logger.Error().Err(err).Msg("GitHub OAuth exchange failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to exchange token"})
		return
	}

	client := githubOauthConfig.Client(context.Background(), token)
	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get GitHub user info")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user info"})
		return
	}
	defer resp.Body.Close()

	var userInfo struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		logger.Error().Err(err).Msg("Failed to parse GitHub user info")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse user info"})
		return
	}

	// GitHub hides the email unless it's public; fall back to the emails API
	if userInfo.Email == "" {
		emailResp, err := client.Get("https://api.github.com/user/emails")
		if err == nil {
			defer emailResp.Body.Close()
			var emails []struct {
				Email   string `json:"email"`
				Primary bool   `json:"primary"`
			}
			if json.NewDecoder(emailResp.Body).Decode(&emails) == nil {
				for _, e := range emails {
					if e.Primary {
						userInfo.Email = e.Email
						break
					}
				}
			}
		}
	}

	name := userInfo.Name
	if name == "" {
		name = userInfo.Login
	}

	user := handleOAuthLogin(c, fmt.Sprintf("github:%d", userInfo.ID), userInfo.Email, name, userInfo.AvatarURL)
	if user != nil {
		finishOAuthLogin(c, user)
	}
}

// Common OAuth Handler - resolves the user by provider subject, syncing the
// profile on every login so display names and avatars never go stale
func handleOAuthLogin(c *gin.Context, externalId, email, name, image string) *models.User {
	if name == "" {
		name = "Anonymous"
	}

	var user models.User
	result := database.DB.Where("external_id = ?", externalId).First(&user)

	if result.Error == nil {
		updates := map[string]interface{}{
			"name":      name,
			"email":     email,
			"image":     image,
			"is_online": true,
			"last_seen": time.Now(),
		}
		if err := database.DB.Model(&user).Updates(updates).Error; err != nil {
			logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to sync profile during OAuth")
		}
		return &user
	}

	if result.Error == gorm.ErrRecordNotFound {
		logger.Info().Str("email", email).Msg("New user registration via OAuth")

		user = models.User{
			ID:         uuid.New().String(),
			ExternalID: externalId,
			Email:      email,
			Name:       name,
			Image:      image,
			IsOnline:   true,
			LastSeen:   time.Now(),
		}

		if createErr := database.DB.Create(&user).Error; createErr != nil {
			logger.Error().Err(createErr).Str("email", email).Msg("Failed to create user during OAuth")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Account creation failed"})
			return nil
		}
		return &user
	}

	logger.Error().Err(result.Error).Str("email", email).Msg("Database query failed during handleOAuthLogin")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error during login process"})
	return nil
}

func finishOAuthLogin(c *gin.Context, user *models.User) {
	token, err := utils.GenerateToken(user.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to generate token during OAuth")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	database.SetUserOnline(user.ID)
	logger.Info().Str("user_id", user.ID).Msg("User logged in via OAuth")

	redirectURL := fmt.Sprintf("%s/oauth-callback?token=%s", config.AppConfig.FrontendURL, token)
	c.Redirect(http.StatusTemporaryRedirect, redirectURL)
}

// Logout revokes the current token and marks the user offline
func Logout(c *gin.Context) {
	userId := c.MustGet("userId").(string)

	if claimsVal, exists := c.Get("claims"); exists {
		if claims, ok := claimsVal.(*utils.Claims); ok {
			ttl := time.Until(claims.ExpiresAt.Time)
			if ttl > 0 {
				if err := database.BlacklistToken(claims.GetJTI(), ttl); err != nil {
					logger.Error().Err(err).Msg("Failed to blacklist token on logout")
				}
			}
		}
	}

	database.DB.Model(&models.User{}).Where("id = ?", userId).
		Updates(map[string]interface{}{"is_online": false, "last_seen": time.Now()})
	database.SetUserOffline(userId)

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the caller's profile
func Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
