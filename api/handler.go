package api

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/napassornsp/chat-new/middleware"
	"github.com/napassornsp/chat-new/models"
	"github.com/napassornsp/chat-new/realtime"
	"github.com/napassornsp/chat-new/repository"
	"github.com/napassornsp/chat-new/services"
	"github.com/napassornsp/chat-new/utils"
)

// APIHandler holds all dependencies for API handlers, such as repositories and services.
type APIHandler struct {
	userRepo         repository.UserRepository
	notificationRepo repository.NotificationRepository
	creditService    services.CreditService
	chatService      services.ChatService
	ocrService       services.OCRService
	gateway          services.TableGateway
	hub              *realtime.Hub
}

// NewAPIHandler creates a new APIHandler with necessary dependencies.
func NewAPIHandler(
	userRepo repository.UserRepository,
	notificationRepo repository.NotificationRepository,
	creditService services.CreditService,
	chatService services.ChatService,
	ocrService services.OCRService,
	gateway services.TableGateway,
	hub *realtime.Hub,
) *APIHandler {
	return &APIHandler{
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		creditService:    creditService,
		chatService:      chatService,
		ocrService:       ocrService,
		gateway:          gateway,
		hub:              hub,
	}
}

// currentUser returns the authenticated caller set by the auth
// middleware, or nil for anonymous requests.
func currentUser(c *gin.Context) *models.User {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}

// respondError maps service errors onto HTTP responses. The credit
// denial keeps its dedicated payload so clients can show the remaining
// allowance without a second round trip.
func respondError(c *gin.Context, err error) {
	if denial := services.AsInsufficientCredits(err); denial != nil {
		c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
			"errorCode": "INSUFFICIENT_CREDITS",
			"message":   denial.Error(),
			"data":      gin.H{"credits": denial.Credits},
		})
		return
	}
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		utils.SendJSONError(c, http.StatusUnauthorized, "Authentication required.", err)
	case errors.Is(err, services.ErrNotFound):
		utils.SendJSONError(c, http.StatusNotFound, "Not found.", err)
	case errors.Is(err, services.ErrUnknownTable):
		utils.SendJSONError(c, http.StatusBadRequest, "Unknown table.", err)
	case errors.Is(err, services.ErrUnknownPlan):
		utils.SendJSONError(c, http.StatusBadRequest, "Unknown plan.", err)
	case errors.Is(err, services.ErrMissingValues):
		utils.SendJSONError(c, http.StatusBadRequest, "Request body must carry values.", err)
	default:
		utils.SendJSONError(c, http.StatusInternalServerError, "", err)
	}
}

// HealthHandler reports service liveness.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

// SignupHandler creates an account and opens a session for it.
// POST /auth/signup
func (h *APIHandler) SignupHandler(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request format.", err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := h.userRepo.GetUserByEmail(email)
	if err != nil {
		respondError(c, err)
		return
	}
	if existing != nil {
		utils.SendJSONError(c, http.StatusConflict, "email_in_use", nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, err)
		return
	}
	name := req.Name
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user := &models.User{Email: email, Name: name, PasswordHash: string(hash)}
	if err := h.userRepo.CreateUser(user); err != nil {
		respondError(c, err)
		return
	}
	if err := h.userRepo.SaveProfile(&models.Profile{ID: user.ID, FullName: &name}); err != nil {
		respondError(c, err)
		return
	}
	// First access provisions the ledger on the default plan.
	if _, err := h.creditService.GetOrCreate(user.ID); err != nil {
		respondError(c, err)
		return
	}

	token, err := h.openSession(user)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Printf("INFO: [Auth] New account %s (id %d).", user.Email, user.ID)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"user": user.Serialize(), "access_token": token}})
}

// LoginHandler verifies credentials and opens a session.
// POST /auth/login
func (h *APIHandler) LoginHandler(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request format.", err)
		return
	}

	user, err := h.userRepo.GetUserByEmail(req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		utils.SendJSONError(c, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}

	token, err := h.openSession(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"user": user.Serialize(), "access_token": token}})
}

func (h *APIHandler) openSession(user *models.User) (string, error) {
	token := uuid.NewString()
	if err := h.userRepo.CreateSession(&models.Session{Token: token, UserID: user.ID}); err != nil {
		return "", err
	}
	return token, nil
}

// AuthMeHandler returns the authenticated account.
// GET /auth/me
func (h *APIHandler) AuthMeHandler(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, services.ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"user": user.Serialize()}})
}

// LogoutHandler revokes the presented session token. Unknown tokens
// succeed so logout is idempotent.
// POST /auth/logout
func (h *APIHandler) LogoutHandler(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if err := h.userRepo.DeleteSession(token); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"ok": true}})
}

// ProfileHandler returns the caller's account and profile.
// GET /me
func (h *APIHandler) ProfileHandler(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, services.ErrUnauthorized)
		return
	}
	profile, err := h.userRepo.GetProfile(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	payload := gin.H{"user": user.Serialize()}
	if profile != nil {
		payload["profile"] = profile.Serialize()
	} else {
		payload["profile"] = nil
	}
	c.JSON(http.StatusOK, gin.H{"data": payload})
}

type profileUpdateRequest struct {
	Name      *string `json:"name"`
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

// UpdateProfileHandler updates the caller's display name and profile
// fields.
// PUT /me
func (h *APIHandler) UpdateProfileHandler(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, services.ErrUnauthorized)
		return
	}
	var req profileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request format.", err)
		return
	}

	if req.Name != nil && *req.Name != "" {
		user.Name = *req.Name
		if err := h.userRepo.SaveUser(user); err != nil {
			respondError(c, err)
			return
		}
	}

	profile, err := h.userRepo.GetProfile(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if profile == nil {
		profile = &models.Profile{ID: user.ID}
	}
	if req.FullName != nil {
		profile.FullName = req.FullName
	}
	if req.AvatarURL != nil {
		profile.AvatarURL = req.AvatarURL
	}
	if err := h.userRepo.SaveProfile(profile); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"user": user.Serialize(), "profile": profile.Serialize()}})
}

// GetCreditsHandler returns the caller's usage snapshot, provisioning
// and resetting the ledger as needed.
// POST /rpc/get_credits
func (h *APIHandler) GetCreditsHandler(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, services.ErrUnauthorized)
		return
	}
	snapshot, err := h.creditService.Snapshot(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"credits": snapshot}})
}

// ResetCreditsHandler zeroes the caller's usage counters immediately.
// POST /rpc/reset_monthly_credits
func (h *APIHandler) ResetCreditsHandler(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, services.ErrUnauthorized)
		return
	}
	snapshot, err := h.creditService.ResetMonthly(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.notify(user.ID, "Credits reset", "Your monthly usage counters were reset.")
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"ok": true, "credits": snapshot}})
}

type setPlanRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// SetPlanHandler switches the caller's plan and zeroes usage for the
// new period.
// POST /rpc/set_plan
func (h *APIHandler) SetPlanHandler(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, services.ErrUnauthorized)
		return
	}
	var req setPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request format.", err)
		return
	}
	snapshot, err := h.creditService.SetPlan(user.ID, req.Plan)
	if err != nil {
		respondError(c, err)
		return
	}
	h.notify(user.ID, "Plan changed", "Your plan is now "+req.Plan+".")
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"ok": true, "credits": snapshot}})
}

// notify records a system notification and publishes its change event.
// Failures are logged, never surfaced; the triggering operation already
// succeeded.
func (h *APIHandler) notify(userID uint, title, body string) {
	notification := &models.Notification{UserID: userID, Title: title, Body: body}
	if err := h.notificationRepo.Create(notification); err != nil {
		log.Printf("ERROR: [Notifications] Failed to record %q for user %d: %v", title, userID, err)
		return
	}
	h.hub.Publish(realtime.NewEvent(realtime.EventInsert, "notifications", notification.Serialize(), nil))
}
