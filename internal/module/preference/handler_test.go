package preference

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/ftthadmin/internal/middleware"
)

func setupAPIRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.Auth(nil, middleware.AuthConfig{Enabled: false}))
	NewModule(NewHandler(NewService(NewPreferenceRepository(setupTestDB(t))))).RegisterRoutes(api)
	return r
}

func TestPreferenceHandler_PutThenGet(t *testing.T) {
	r := setupAPIRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/preferences/odps", strings.NewReader(`{"per_page":50}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT: expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/preferences/odps", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET: expected status 200, got %d", w.Code)
	}
	if want := `"data":{"per_page":50}`; !strings.Contains(w.Body.String(), want) {
		t.Errorf("body = %s; want it to contain %s", w.Body.String(), want)
	}
}

func TestPreferenceHandler_Errors(t *testing.T) {
	r := setupAPIRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/preferences/clients", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing: expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/preferences/clients", strings.NewReader(`"text"`)))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("non-object: expected 422, got %d", w.Code)
	}
}

func TestPreferenceHandler_RequiresAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewModule(NewHandler(NewService(NewPreferenceRepository(setupTestDB(t))))).RegisterRoutes(r.Group("/api/v1"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/preferences/odps", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without auth middleware, got %d", w.Code)
	}
}

func TestNewModule_PanicsOnNilHandler(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewModule() expected panic for nil handler, got none")
		}
	}()
	_ = NewModule(nil)
}
