package pkg

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/ftthadmin/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type siteInput struct {
	Name string  `json:"name" binding:"required,min=2"`
	Lat  float64 `json:"lat" binding:"gte=-90,lte=90"`
}

type embeddedInput struct {
	siteInput
	Code string `json:"code" binding:"required"`
}

func newResponseTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func newResponseTestContextWithBody(body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestSuccess(t *testing.T) {
	c, w := newResponseTestContext()
	Success(c, map[string]string{"greeting": "hello"})

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Code != http.StatusOK || resp.Message != "success" {
		t.Errorf("unexpected envelope: %+v", resp)
	}
}

func TestCreated(t *testing.T) {
	c, w := newResponseTestContext()
	Created(c, gin.H{"id": "x"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}
}

func TestError_AppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"not found", domain.NewAppError(domain.CodeNotFound, "odp not found", nil), http.StatusNotFound, "odp not found"},
		{"already exists", domain.ErrAlreadyExists, http.StatusConflict, "already exists"},
		{"validation without bag", domain.ErrValidation, http.StatusUnprocessableEntity, "validation error"},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"generic", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newResponseTestContext()
			Error(c, tt.err)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var resp Response
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, resp.Message)
			}
			if strings.Contains(w.Body.String(), "boom") {
				t.Error("internal error details must not leak")
			}
		})
	}
}

func TestError_ValidationBag(t *testing.T) {
	c, w := newResponseTestContext()
	Error(c, domain.FieldError("odc_id", "odc does not exist"))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", w.Code)
	}
	var resp ValidationErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if got := resp.Errors["odc_id"]; len(got) != 1 || got[0] != "odc does not exist" {
		t.Fatalf("errors[odc_id] = %v", got)
	}
}

func TestList_Envelope(t *testing.T) {
	c, w := newResponseTestContext()
	page := NewPage([]string{"a", "b"}, 12, domain.ListQuery{Page: 2, PerPage: 10})
	List(c, page)

	var resp struct {
		Data struct {
			Data []string `json:"data"`
			Meta struct {
				LastPage int   `json:"last_page"`
				Total    int64 `json:"total"`
			} `json:"meta"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Data.Data) != 2 {
		t.Errorf("expected 2 rows, got %d", len(resp.Data.Data))
	}
	if resp.Data.Meta.LastPage != 2 || resp.Data.Meta.Total != 12 {
		t.Errorf("unexpected meta: %+v", resp.Data.Meta)
	}
}

func TestBindAndValidate_InvalidJSON(t *testing.T) {
	c, w := newResponseTestContextWithBody(`{"name":`)
	var in siteInput
	if BindAndValidate(c, &in) {
		t.Fatal("expected BindAndValidate to fail")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestBindAndValidate_FieldBag(t *testing.T) {
	c, w := newResponseTestContextWithBody(`{"name":"x","lat":120}`)
	var in siteInput
	if BindAndValidate(c, &in) {
		t.Fatal("expected BindAndValidate to fail")
	}
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", w.Code)
	}
	var resp ValidationErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if got := resp.Errors["name"]; len(got) != 1 || got[0] != "min=2" {
		t.Errorf("errors[name] = %v; want [min=2]", got)
	}
	if got := resp.Errors["lat"]; len(got) != 1 || got[0] != "lte=90" {
		t.Errorf("errors[lat] = %v; want [lte=90]", got)
	}
}

func TestBindAndValidate_EmbeddedJSONNames(t *testing.T) {
	c, w := newResponseTestContextWithBody(`{"lat":1}`)
	var in embeddedInput
	if BindAndValidate(c, &in) {
		t.Fatal("expected BindAndValidate to fail")
	}
	var resp ValidationErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if _, ok := resp.Errors["name"]; !ok {
		t.Errorf("expected embedded field reported as 'name', got %v", resp.Errors)
	}
	if _, ok := resp.Errors["code"]; !ok {
		t.Errorf("expected 'code' in errors, got %v", resp.Errors)
	}
}

func TestBindAndValidate_ValidInput(t *testing.T) {
	c, _ := newResponseTestContextWithBody(`{"name":"Gedung A","lat":-6.2}`)
	var in siteInput
	if !BindAndValidate(c, &in) {
		t.Fatal("expected BindAndValidate to succeed")
	}
	if in.Name != "Gedung A" || in.Lat != -6.2 {
		t.Errorf("unexpected bound value: %+v", in)
	}
}
