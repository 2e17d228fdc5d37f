package pkg

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/simp-lee/ftthadmin/internal/domain"
)

var testQueryOptions = QueryOptions{
	SortFields:   []string{"name", "created_at"},
	SearchFields: []string{"name", "code"},
	FilterFields: []string{"odc_id"},
	DateFields:   []string{"created_at"},
}

func newTestContext(queryParams url.Values) *gin.Context {
	req := httptest.NewRequest(http.MethodGet, "/?"+queryParams.Encode(), nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c
}

func TestParseListQuery_Defaults(t *testing.T) {
	q := ParseListQuery(newTestContext(url.Values{}), testQueryOptions)

	if q.Page != 1 {
		t.Errorf("expected Page=1, got %d", q.Page)
	}
	if q.PerPage != 10 {
		t.Errorf("expected PerPage=10, got %d", q.PerPage)
	}
	if q.SortField != "" || q.Search != "" || len(q.Status) != 0 || len(q.Filters) != 0 || q.DateField != "" {
		t.Errorf("expected empty query, got %+v", q)
	}
}

func TestParseListQuery_AllParams(t *testing.T) {
	q := ParseListQuery(newTestContext(url.Values{
		"page":       {"3"},
		"per_page":   {"50"},
		"filter":     {" cibubur "},
		"sort":       {"name|dsc"},
		"status":     {"active,archived,active"},
		"odc_id":     {"a,b"},
		"created_at": {"2024-01-01,2024-01-31"},
		"ignored":    {"x"},
	}), testQueryOptions)

	if q.Page != 3 || q.PerPage != 50 {
		t.Errorf("unexpected paging %d/%d", q.Page, q.PerPage)
	}
	if q.Search != "cibubur" {
		t.Errorf("Search = %q", q.Search)
	}
	if q.SortField != "name" || q.SortDirection != "desc" {
		t.Errorf("sort = %s %s", q.SortField, q.SortDirection)
	}
	if len(q.Status) != 2 || q.Status[0] != "active" || q.Status[1] != "archived" {
		t.Errorf("Status = %v", q.Status)
	}
	if got := q.Filters["odc_id"]; len(got) != 2 {
		t.Errorf("Filters[odc_id] = %v", got)
	}
	if _, ok := q.Filters["ignored"]; ok {
		t.Error("undeclared filter key must be ignored")
	}
	if q.DateField != "created_at" || q.DateFrom == nil || q.DateTo == nil {
		t.Fatalf("date range not parsed: %+v", q)
	}
	if want := time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC); !q.DateTo.Equal(want) {
		t.Errorf("DateTo = %v; want end of day %v", q.DateTo, want)
	}
}

func TestParseListQuery_PerPageClamp(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"0", 10},
		{"-5", 10},
		{"abc", 10},
		{"500", 100},
		{"100", 100},
	}
	for _, tt := range tests {
		q := ParseListQuery(newTestContext(url.Values{"per_page": {tt.raw}}), testQueryOptions)
		if q.PerPage != tt.want {
			t.Errorf("per_page=%s: got %d; want %d", tt.raw, q.PerPage, tt.want)
		}
	}
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		raw       string
		wantField string
		wantDir   string
		wantOK    bool
	}{
		{"name|asc", "name", "asc", true},
		{"name|dsc", "name", "desc", true},
		{"name|desc", "name", "desc", true},
		{"name|sideways", "", "", false},
		{"name", "", "", false},
		{"name; drop table|asc", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		field, dir, ok := ParseSort(tt.raw)
		if field != tt.wantField || dir != tt.wantDir || ok != tt.wantOK {
			t.Errorf("ParseSort(%q) = (%q, %q, %v); want (%q, %q, %v)", tt.raw, field, dir, ok, tt.wantField, tt.wantDir, tt.wantOK)
		}
	}
}

func TestParseListQuery_InvalidDateRangeIgnored(t *testing.T) {
	q := ParseListQuery(newTestContext(url.Values{"created_at": {"yesterday,today"}}), testQueryOptions)
	if q.DateField != "" {
		t.Errorf("expected invalid range to be ignored, got %+v", q)
	}
}

func TestNewPage(t *testing.T) {
	tests := []struct {
		name     string
		total    int64
		perPage  int
		wantLast int
	}{
		{"empty", 0, 10, 1},
		{"exact", 20, 10, 2},
		{"remainder", 21, 10, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPage[int](nil, tt.total, domain.ListQuery{Page: 1, PerPage: tt.perPage})
			if p.Meta.LastPage != tt.wantLast {
				t.Errorf("LastPage = %d; want %d", p.Meta.LastPage, tt.wantLast)
			}
			if p.Data == nil {
				t.Error("Data must never be nil")
			}
		})
	}
}

type scopeRow struct {
	ID        uint `gorm:"primaryKey"`
	Name      string
	Code      string
	Status    string
	OdcID     string `gorm:"column:odc_id"`
	DeletedAt *time.Time
	CreatedAt time.Time
}

func newScopeDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&scopeRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	deleted := now
	rows := []scopeRow{
		{Name: "ODP Cibubur 01", Code: "CBB-01", Status: "active", OdcID: "a", CreatedAt: now},
		{Name: "ODP Cibubur 02", Code: "CBB-02", Status: "archived", OdcID: "a", CreatedAt: now.AddDate(0, 1, 0)},
		{Name: "ODP Depok 01", Code: "DPK-01", Status: "active", OdcID: "b", CreatedAt: now, DeletedAt: &deleted},
		{Name: "ODP 100%", Code: "PCT-01", Status: "inactive", OdcID: "c", CreatedAt: now},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

func findNames(t *testing.T, db *gorm.DB, scopes ...func(*gorm.DB) *gorm.DB) []string {
	t.Helper()
	var rows []scopeRow
	if err := db.Model(&scopeRow{}).Scopes(scopes...).Order("id").Find(&rows).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	return names
}

func TestScopes(t *testing.T) {
	db := newScopeDB(t)
	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		q     domain.ListQuery
		scope func(domain.ListQuery) func(*gorm.DB) *gorm.DB
		want  int
	}{
		{"search name", domain.ListQuery{Search: "cibubur"}, func(q domain.ListQuery) func(*gorm.DB) *gorm.DB { return Search(q, []string{"name", "code"}) }, 2},
		{"search code", domain.ListQuery{Search: "DPK"}, func(q domain.ListQuery) func(*gorm.DB) *gorm.DB { return Search(q, []string{"name", "code"}) }, 1},
		{"search escapes percent", domain.ListQuery{Search: "100%"}, func(q domain.ListQuery) func(*gorm.DB) *gorm.DB { return Search(q, []string{"name"}) }, 1},
		{"status in", domain.ListQuery{Status: []string{"active"}}, StatusIn, 2},
		{"status deleted", domain.ListQuery{Status: []string{"deleted"}}, StatusIn, 1},
		{"status archived or deleted", domain.ListQuery{Status: []string{"archived", "deleted"}}, StatusIn, 2},
		{"filter allowed", domain.ListQuery{Filters: map[string][]string{"odc_id": {"a", "c"}}}, func(q domain.ListQuery) func(*gorm.DB) *gorm.DB { return Filter(q, []string{"odc_id"}) }, 3},
		{"filter not allowed", domain.ListQuery{Filters: map[string][]string{"name": {"x"}}}, func(q domain.ListQuery) func(*gorm.DB) *gorm.DB { return Filter(q, []string{"odc_id"}) }, 4},
		{"date range", domain.ListQuery{DateField: "created_at", DateFrom: &from}, func(q domain.ListQuery) func(*gorm.DB) *gorm.DB { return DateRange(q, []string{"created_at"}) }, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findNames(t, db, tt.scope(tt.q))
			if len(got) != tt.want {
				t.Errorf("got %d rows (%v); want %d", len(got), got, tt.want)
			}
		})
	}
}

func TestSortAndPaginate(t *testing.T) {
	db := newScopeDB(t)
	q := domain.ListQuery{Page: 2, PerPage: 2, SortField: "name", SortDirection: "desc"}

	var rows []scopeRow
	if err := db.Model(&scopeRow{}).Scopes(Sort(q, []string{"name"}, "id asc"), Paginate(q)).Find(&rows).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Name != "ODP Cibubur 01" || rows[1].Name != "ODP 100%" {
		t.Errorf("unexpected order: %q, %q", rows[0].Name, rows[1].Name)
	}
}

func TestSort_FallbackForUnknownField(t *testing.T) {
	db := newScopeDB(t)
	q := domain.ListQuery{SortField: "code", SortDirection: "desc"}

	var rows []scopeRow
	if err := db.Model(&scopeRow{}).Scopes(Sort(q, []string{"name"}, "id desc")).Find(&rows).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if rows[0].ID != 4 {
		t.Errorf("expected fallback order id desc, first id = %d", rows[0].ID)
	}
}
