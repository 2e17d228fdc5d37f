package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/ftthadmin/internal/domain"
	"github.com/simp-lee/ftthadmin/internal/middleware"
	"github.com/simp-lee/ftthadmin/internal/pkg"
)

// AuthHandler handles REST API requests for authentication.
type AuthHandler struct {
	svc Service
}

// NewHandler creates a new AuthHandler with the given service.
func NewHandler(svc Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	tokenResp, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, tokenResp)
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	user, err := h.svc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Created(c, toUserResponse(user))
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	_, token, _ := strings.Cut(c.GetHeader("Authorization"), " ")
	if err := h.svc.Logout(c.Request.Context(), strings.TrimSpace(token)); err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, nil)
}

// LogoutAll handles POST /api/v1/auth/logout-all. Every token of the caller
// issued so far stops validating.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	id, ok := middleware.UserID(c)
	if !ok || id == middleware.AnonymousUserID {
		pkg.Error(c, domain.ErrUnauthorized)
		return
	}
	if err := h.svc.LogoutAll(c.Request.Context(), id); err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, nil)
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := middleware.UserID(c)
	if !ok {
		pkg.Error(c, domain.ErrUnauthorized)
		return
	}
	if id == middleware.AnonymousUserID {
		pkg.Success(c, UserResponse{Name: "anonymous"})
		return
	}

	user, err := h.svc.GetUser(c.Request.Context(), id)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, toUserResponse(user))
}

func toUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}
