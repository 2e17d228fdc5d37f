package preference

import "github.com/gin-gonic/gin"

// PreferenceModule implements the app.Module interface for table preferences.
type PreferenceModule struct {
	handler *PreferenceHandler
}

// NewModule creates a new PreferenceModule with the given handler.
// Panics if h is nil.
func NewModule(h *PreferenceHandler) *PreferenceModule {
	if h == nil {
		panic("preference.NewModule: handler must not be nil")
	}
	return &PreferenceModule{handler: h}
}

// RegisterRoutes registers preference API routes.
func (m *PreferenceModule) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/preferences/:key", m.handler.Get)
	api.PUT("/preferences/:key", m.handler.Put)
}
