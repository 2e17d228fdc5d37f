package inventory

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/simp-lee/ftthadmin/internal/domain"
	"github.com/simp-lee/ftthadmin/internal/pkg"
)

// Handler serves the REST API of one inventory resource.
type Handler[E any] struct {
	svc  Service[E]
	kind Kind[E]
}

// NewHandler creates a Handler for kind.
func NewHandler[E any](svc Service[E], kind Kind[E]) *Handler[E] {
	return &Handler[E]{svc: svc, kind: kind}
}

// RegisterRoutes mounts the resource under /<path>.
func (h *Handler[E]) RegisterRoutes(api *gin.RouterGroup) {
	g := api.Group("/" + h.kind.Path)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.POST("/bulk", h.Bulk)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
}

// List handles GET /<path>?per_page&page&filter&sort&status&<filters>&<date field>.
func (h *Handler[E]) List(c *gin.Context) {
	q := pkg.ParseListQuery(c, h.kind.Query)

	page, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.List(c, page)
}

// Get handles GET /<path>/:id.
func (h *Handler[E]) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	e, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, e)
}

// Create handles POST /<path>.
func (h *Handler[E]) Create(c *gin.Context) {
	e := new(E)
	if !pkg.BindAndValidate(c, e) {
		return
	}

	created, err := h.svc.Create(c.Request.Context(), e)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Created(c, created)
}

// Update handles PUT /<path>/:id.
func (h *Handler[E]) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	e := new(E)
	if !pkg.BindAndValidate(c, e) {
		return
	}

	updated, err := h.svc.Update(c.Request.Context(), id, e)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, updated)
}

// Bulk handles POST /<path>/bulk {action, ids} and answers {data: [affected rows]}.
func (h *Handler[E]) Bulk(c *gin.Context) {
	var req domain.BulkRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	rows, err := h.svc.Bulk(c.Request.Context(), req.Action, req.IDs)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, rows)
}

func parseID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeBadRequest, "invalid id", err))
		return "", false
	}
	return id, true
}
