package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-forms-api/internal/auth"
	"github.com/franciscosanchezn/gin-forms-api/internal/middleware"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
	"github.com/franciscosanchezn/gin-forms-api/internal/services"
)

type AuthController struct {
	userService services.UserService
	issuer      *auth.TokenIssuer
	revocations auth.RevocationStore
}

func NewAuthController(userService services.UserService, issuer *auth.TokenIssuer, revocations auth.RevocationStore) *AuthController {
	return &AuthController{
		userService: userService,
		issuer:      issuer,
		revocations: revocations,
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// userResponse is the public view of a user
type userResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type tokenResponse struct {
	Message   string       `json:"message"`
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresIn int64        `json:"expires_in"`
	User      userResponse `json:"user"`
}

// Register godoc
// @Summary Register a user
// @Description Create an account with the user role
// @Tags auth
// @Accept json
// @Produce json
// @Param user body registerRequest true "Account details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Router /api/auth/register [post]
func (ac *AuthController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	user, err := ac.userService.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    toUserResponse(user),
	})
}

// Login godoc
// @Summary Log in
// @Description Exchange email and password for a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body loginRequest true "Credentials"
// @Success 200 {object} tokenResponse
// @Failure 400 {object} models.APIError
// @Failure 401 {object} models.APIError
// @Router /api/auth/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	user, err := ac.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	ac.respondToken(c, user, "Login successful")
}

func (ac *AuthController) respondToken(c *gin.Context, user *models.User, message string) {
	token, _, err := ac.issuer.Issue(user.ID, user.Role)
	if err != nil {
		respondError(c, models.NewInternalError(err))
		return
	}

	log.WithFields(logrus.Fields{"user_id": user.ID}).Debug("Issued user token")
	c.JSON(http.StatusOK, tokenResponse{
		Message:   message,
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(ac.issuer.TTL().Seconds()),
		User:      toUserResponse(user),
	})
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} models.APIError
// @Security BearerAuth
// @Router /api/auth/me [get]
func (ac *AuthController) Me(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	user, err := ac.userService.GetByID(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

// Logout godoc
// @Summary Log out
// @Description Revoke the presented token until it expires
// @Tags auth
// @Produce json
// @Success 200 {object} messageResponse
// @Failure 401 {object} models.APIError
// @Security BearerAuth
// @Router /api/auth/logout [post]
func (ac *AuthController) Logout(c *gin.Context) {
	if err := ac.revokeCurrent(c); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Logged out"})
}

// Refresh godoc
// @Summary Refresh token
// @Description Issue a new token with the current role and revoke the presented one. Client tokens are refused.
// @Tags auth
// @Produce json
// @Success 200 {object} tokenResponse
// @Failure 401 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Security BearerAuth
// @Router /api/auth/refresh [post]
func (ac *AuthController) Refresh(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	// Client tokens are renewed at the token endpoint with the client secret
	if claims, ok := middleware.GetClaims(c); ok && len(claims.Audience) > 0 {
		respondError(c, models.NewForbiddenError(models.ErrForbidden, "Client tokens cannot be refreshed"))
		return
	}
	user, err := ac.userService.GetByID(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := ac.revokeCurrent(c); err != nil {
		respondError(c, err)
		return
	}
	ac.respondToken(c, user, "Token refreshed")
}

func (ac *AuthController) revokeCurrent(c *gin.Context) error {
	claims, ok := middleware.GetClaims(c)
	if !ok || claims.ID == "" || claims.ExpiresAt == nil {
		return models.NewAuthenticationError(models.ErrTokenInvalid, "Token cannot be revoked")
	}
	if err := ac.revocations.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
