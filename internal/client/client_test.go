package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/go-cmp/cmp"
	"gorm.io/gorm"

	"github.com/simp-lee/ftthadmin/internal/datatable"
	"github.com/simp-lee/ftthadmin/internal/domain"
	"github.com/simp-lee/ftthadmin/internal/eventbus"
	"github.com/simp-lee/ftthadmin/internal/middleware"
	"github.com/simp-lee/ftthadmin/internal/module/inventory"
	"github.com/simp-lee/ftthadmin/internal/module/preference"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	models := append(inventory.Models(), &domain.Preference{})
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// setupAPI serves the inventory and preference modules the way the server
// binary mounts them, with authentication disabled.
func setupAPI(t *testing.T) (*Client, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.Auth(nil, middleware.AuthConfig{Enabled: false}))
	inventory.NewModule(db).RegisterRoutes(api)
	preference.NewModule(preference.NewHandler(preference.NewService(preference.NewPreferenceRepository(db)))).RegisterRoutes(api)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/v1", WithTimeout(5*time.Second)), db
}

func seedODC(t *testing.T, db *gorm.DB, id, code, status string) {
	t.Helper()
	odc := &domain.ODC{
		InventoryModel: domain.InventoryModel{ID: id, Status: status},
		Code:           code,
		Name:           "Cabinet " + code,
		LocationID:     "loc",
		Capacity:       144,
	}
	if err := db.Create(odc).Error; err != nil {
		t.Fatalf("seed odc %s: %v", id, err)
	}
}

func TestClient_ListAndBulk(t *testing.T) {
	c, db := setupAPI(t)
	seedODC(t, db, "a", "ODC-A", domain.StatusActive)
	seedODC(t, db, "b", "ODC-B", domain.StatusActive)
	seedODC(t, db, "c", "ODC-C", domain.StatusArchived)
	ctx := context.Background()

	page, err := c.List(ctx, "/odcs?per_page=10&page=1&sort=code%7Cdsc&status=active")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff([]string{"b", "a"}, page.IDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if page.Meta.TotalRecords != 2 || page.Meta.TotalPages != 1 {
		t.Errorf("meta = %+v", page.Meta)
	}
	if got := page.Rows[0].String("code"); got != "ODC-B" {
		t.Errorf("code = %q", got)
	}

	affected, err := c.Bulk(ctx, "/odcs", domain.ActionArchive, []string{"a", "c"})
	if err != nil {
		t.Fatalf("Bulk() error = %v", err)
	}
	if len(affected) != 1 || affected[0].ID != "a" || affected[0].Status != domain.StatusArchived {
		t.Errorf("affected = %+v; want only a, archived", affected)
	}
}

func TestClient_ValidationErrorCarriesFields(t *testing.T) {
	c, _ := setupAPI(t)

	_, err := c.Create(context.Background(), "/odps", map[string]any{
		"code": "ODP-1", "name": "ODP One", "odc_id": "missing", "capacity": 8,
	})

	if !domain.IsValidation(err) {
		t.Fatalf("Create() error = %v; want a validation error", err)
	}
	fields := domain.ValidationFields(err)
	if len(fields["odc_id"]) == 0 {
		t.Errorf("fields = %v; want an odc_id message", fields)
	}
}

func TestClient_NotFound(t *testing.T) {
	c, _ := setupAPI(t)

	_, err := c.Get(context.Background(), "/odcs", "8b0e6a3c-5f7a-4d55-9a59-3c2b1f0e9d11")

	if !domain.IsNotFound(err) {
		t.Errorf("Get() error = %v; want not found", err)
	}
}

func TestClient_Preferences(t *testing.T) {
	c, _ := setupAPI(t)
	ctx := context.Background()

	var pref datatable.Preference
	found, err := c.LoadPreference(ctx, "odps", &pref)
	if err != nil || found {
		t.Fatalf("LoadPreference() = %v, %v; want false, nil", found, err)
	}

	want := datatable.Preference{Filter: "tebet", SortField: "code", SortDirection: "dsc", Page: 2, Status: []string{"active"}, PageSize: 50}
	if err := c.SavePreference(ctx, "odps", want); err != nil {
		t.Fatalf("SavePreference() error = %v", err)
	}
	found, err = c.LoadPreference(ctx, "odps", &pref)
	if err != nil || !found {
		t.Fatalf("LoadPreference() = %v, %v; want true, nil", found, err)
	}
	if diff := cmp.Diff(want, pref); diff != "" {
		t.Errorf("preference mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Stats(t *testing.T) {
	c, db := setupAPI(t)
	seedODC(t, db, "a", "ODC-A", domain.StatusActive)
	seedODC(t, db, "b", "ODC-B", domain.StatusArchived)

	stats, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if got := stats["odcs"]; got.Total != 2 || got.Active != 1 || got.Archived != 1 {
		t.Errorf("odcs stats = %+v", got)
	}
}

func TestClient_SendsBearerTokenAndRequestID(t *testing.T) {
	var auth, requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		requestID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":200,"message":"success","data":{"token":"t-2","expires_at":1}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("t-1"))
	if _, err := c.Login(context.Background(), "ops@example.com", "secret-pass"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if auth != "Bearer t-1" || requestID == "" {
		t.Errorf("headers: Authorization=%q X-Request-ID=%q", auth, requestID)
	}
	if c.bearer() != "t-2" {
		t.Errorf("token after login = %q; want t-2", c.bearer())
	}
}

func TestClient_UndecodableErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).List(context.Background(), "/odps?page=1")

	if !domain.IsInternal(err) {
		t.Fatalf("List() error = %v; want internal", err)
	}
	if got := err.Error(); got != "bad gateway" {
		t.Errorf("message = %q; want bad gateway", got)
	}
}

func TestTable_OverTheWire(t *testing.T) {
	c, db := setupAPI(t)
	seedODC(t, db, "a", "ODC-A", domain.StatusActive)
	seedODC(t, db, "b", "ODC-B", domain.StatusArchived)
	fetcher, err := datatable.NewFetcher(c, 32, time.Second, nil)
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}
	var notes []datatable.Notification
	table := datatable.New(datatable.Config{
		Resource:    "odc",
		BasePath:    "/odcs",
		Query:       datatable.QueryOptions{CustomKey: "location_id", Vocab: datatable.DefaultSortVocabulary},
		Defaults:    datatable.ViewState{Page: 1, PageSize: 10, SortField: "code", SortDirection: "asc"},
		Fetcher:     fetcher,
		Poster:      c,
		Preferences: c,
		Bus:         eventbus.New(nil),
		Notify:      func(n datatable.Notification) { notes = append(notes, n) },
	})
	defer table.Close()
	ctx := context.Background()

	table.Mount(ctx, nil)
	q := table.Load(ctx)
	if q.Error {
		t.Fatalf("Load() error = %v", q.Err)
	}
	table.SetAll(true)
	if diff := cmp.Diff([]string{"archive", "delete", "restore"}, names(table.BulkActions())); diff != "" {
		t.Errorf("bulk actions mismatch (-want +got):\n%s", diff)
	}

	if _, err := table.Dispatch(ctx, domain.ActionArchive); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	q = table.Load(ctx)
	for _, row := range q.Data.Rows {
		if row.Status != domain.StatusArchived {
			t.Errorf("row %s status = %q; want archived", row.ID, row.Status)
		}
	}
	if len(notes) != 1 || notes[0].Kind != datatable.NotifySuccess {
		t.Errorf("notifications = %+v; want one success", notes)
	}
}

func names(actions []datatable.Action) []string {
	var out []string
	for _, a := range actions {
		out = append(out, a.Name)
	}
	return out
}
