package preference

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/ftthadmin/internal/domain"
	"github.com/simp-lee/ftthadmin/internal/middleware"
	"github.com/simp-lee/ftthadmin/internal/pkg"
)

// PreferenceHandler handles the per-user table preference API.
type PreferenceHandler struct {
	svc Service
}

// NewHandler creates a new PreferenceHandler with the given service.
func NewHandler(svc Service) *PreferenceHandler {
	return &PreferenceHandler{svc: svc}
}

// Get handles GET /api/v1/preferences/:key.
func (h *PreferenceHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		pkg.Error(c, domain.ErrUnauthorized)
		return
	}

	value, err := h.svc.Load(c.Request.Context(), userID, c.Param("key"))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, value)
}

// Put handles PUT /api/v1/preferences/:key. The body is the document itself.
func (h *PreferenceHandler) Put(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		pkg.Error(c, domain.ErrUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxValueBytes+1))
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeBadRequest, "failed to read body", err))
		return
	}

	if err := h.svc.Save(c.Request.Context(), userID, c.Param("key"), json.RawMessage(body)); err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, json.RawMessage(body))
}
