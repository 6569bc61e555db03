package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/msu-life/auth-service/internal/domain"
	"github.com/msu-life/auth-service/internal/identity"
	"github.com/msu-life/auth-service/internal/transport/http/middleware"
	"github.com/msu-life/auth-service/internal/usecase"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	RequestCode(ctx context.Context, email string) (*usecase.IssuedCode, error)
	VerifyCode(ctx context.Context, email, code string) (*domain.User, string, error)
	UpdateProfile(ctx context.Context, userID string, input usecase.UpdateProfileInput) (*domain.User, error)
}

type AuthHandler struct {
	authUsecase   authUsecaser
	logger        *slog.Logger
	sessionMaxAge int
	secureCookies bool
}

func NewAuthHandler(authUsecase authUsecaser, sessionMaxAge int, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase:   authUsecase,
		logger:        logger.With("component", "auth_handler"),
		sessionMaxAge: sessionMaxAge,
		secureCookies: secureCookies,
	}
}

type requestCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type debugCode struct {
	Code             string `json:"code"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// POST /auth/request-otp
func (h *AuthHandler) RequestCode(c *gin.Context) {
	var req requestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidEmail})
		return
	}

	issued, err := h.authUsecase.RequestCode(c.Request.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidEmail})
		case errors.Is(err, domain.ErrDomainRejected):
			c.JSON(http.StatusForbidden, gin.H{"error": errDomainNotAllowed})
		case errors.Is(err, domain.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": errTooManyRequests})
		default:
			h.logger.ErrorContext(c.Request.Context(), "request code", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	if issued.Code != "" {
		c.JSON(http.StatusOK, gin.H{"ok": true, "debug": debugCode{
			Code:             issued.Code,
			ExpiresInSeconds: int(issued.ExpiresIn.Seconds()),
		}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type verifyCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code"  binding:"required"`
}

// POST /auth/verify-otp
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidInput})
		return
	}

	user, token, err := h.authUsecase.VerifyCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidInput})
		case errors.Is(err, domain.ErrDomainRejected):
			c.JSON(http.StatusForbidden, gin.H{"error": errDomainNotAllowed})
		case errors.Is(err, domain.ErrCodeInvalid):
			c.JSON(http.StatusUnauthorized, gin.H{"error": errCodeInvalid})
		default:
			h.logger.ErrorContext(c.Request.Context(), "verify code", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	middleware.SetSessionCookie(c, token, h.sessionMaxAge, h.secureCookies)
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": userResponse{
		ID:    user.ID,
		Email: user.Email,
		Role:  string(user.Role),
	}})
}

// POST /auth/logout
// Clears the client-held cookie only; the token is not revoked server-side.
func (h *AuthHandler) Logout(c *gin.Context) {
	middleware.ClearSessionCookie(c, h.secureCookies)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type meResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Role        string  `json:"role"`
	Username    *string `json:"username"`
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	DisplayName string  `json:"displayName"`
}

// GET /auth/me, behind RequireAuth.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errNotAuthenticated})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": meResponse{
		ID:          user.ID,
		Email:       user.Email,
		Role:        string(user.Role),
		Username:    user.Username,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		DisplayName: identity.ComputeDisplayName(user.FirstName, user.LastName, user.Email, user.Username),
	}})
}

type updateMeRequest struct {
	Username  *string `json:"username"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// PATCH /auth/me, behind RequireAuth.
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errNotAuthenticated})
		return
	}

	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidInput})
		return
	}

	updated, err := h.authUsecase.UpdateProfile(c.Request.Context(), user.ID, usecase.UpdateProfileInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUsernameInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": errUsernameInvalid})
		case errors.Is(err, domain.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": errUsernameTaken})
		default:
			h.logger.ErrorContext(c.Request.Context(), "update profile", "user_id", user.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": meResponse{
		ID:          updated.ID,
		Email:       updated.Email,
		Role:        string(updated.Role),
		Username:    updated.Username,
		FirstName:   updated.FirstName,
		LastName:    updated.LastName,
		DisplayName: identity.ComputeDisplayName(updated.FirstName, updated.LastName, updated.Email, updated.Username),
	}})
}
