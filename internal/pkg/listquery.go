package pkg

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/simp-lee/ftthadmin/internal/domain"
)

const (
	defaultPage    = 1
	defaultPerPage = 10
	maxPerPage     = 100
)

// Sort direction tokens accepted on the wire. "dsc" is the canonical
// descending token; "desc" is tolerated for hand-written URLs.
const (
	SortTokenAsc  = "asc"
	SortTokenDesc = "dsc"
)

// validFieldName matches only alphanumeric characters and underscores.
var validFieldName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// QueryOptions declares which columns a resource exposes to list queries.
type QueryOptions struct {
	SortFields   []string
	SearchFields []string
	FilterFields []string
	DateFields   []string
}

// ParseListQuery extracts pagination, sorting, and filtering parameters from query params:
//
//	per_page, page, filter, sort=field|asc|dsc, status=a,b, <filter field>=a,b, <date field>=from,to
func ParseListQuery(c *gin.Context, opts QueryOptions) domain.ListQuery {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if page < 1 {
		page = defaultPage
	}

	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	q := domain.ListQuery{
		Page:    page,
		PerPage: perPage,
		Search:  strings.TrimSpace(c.Query("filter")),
		Status:  splitList(c.Query("status")),
	}

	if field, dir, ok := ParseSort(c.Query("sort")); ok {
		q.SortField = field
		q.SortDirection = dir
	}

	for _, key := range opts.FilterFields {
		if values := splitList(c.Query(key)); len(values) > 0 {
			if q.Filters == nil {
				q.Filters = make(map[string][]string)
			}
			q.Filters[key] = values
		}
	}

	for _, key := range opts.DateFields {
		from, to, ok := parseDateRange(c.Query(key))
		if !ok {
			continue
		}
		q.DateField = key
		q.DateFrom = from
		q.DateTo = to
		break
	}

	return q
}

// ParseSort splits a "field|direction" payload. The returned direction is the
// SQL keyword ("asc" or "desc").
func ParseSort(raw string) (field, direction string, ok bool) {
	field, token, found := strings.Cut(strings.TrimSpace(raw), "|")
	if !found {
		return "", "", false
	}
	field = strings.TrimSpace(field)
	if !validFieldName.MatchString(field) {
		return "", "", false
	}
	switch strings.ToLower(strings.TrimSpace(token)) {
	case SortTokenAsc:
		return field, "asc", true
	case SortTokenDesc, "desc":
		return field, "desc", true
	default:
		return "", "", false
	}
}

// Paginate returns a GORM scope that applies LIMIT and OFFSET based on the list query.
func Paginate(q domain.ListQuery) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		offset := (q.Page - 1) * q.PerPage
		return db.Offset(offset).Limit(q.PerPage)
	}
}

// Sort returns a GORM scope that applies ORDER BY based on the list query.
// Only field names present in the allowed list are accepted; otherwise the
// fallback order is used.
func Sort(q domain.ListQuery, allowed []string, fallback string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if q.SortField == "" || !isAllowed(q.SortField, allowed) {
			if fallback == "" {
				return db
			}
			return db.Order(fallback)
		}
		if q.SortDirection != "asc" && q.SortDirection != "desc" {
			return db
		}
		return db.Order(q.SortField + " " + q.SortDirection)
	}
}

// Search returns a GORM scope matching the free-text filter against the
// given columns with LIKE, OR-ed together.
func Search(q domain.ListQuery, columns []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if q.Search == "" || len(columns) == 0 {
			return db
		}
		pattern := "%" + escapeLike(q.Search) + "%"
		cond := db.Session(&gorm.Session{NewDB: true})
		first := true
		for _, col := range columns {
			if !validFieldName.MatchString(col) {
				continue
			}
			if first {
				cond = cond.Where(col+" LIKE ? ESCAPE '\\'", pattern)
				first = false
				continue
			}
			cond = cond.Or(col+" LIKE ? ESCAPE '\\'", pattern)
		}
		if first {
			return db
		}
		return db.Where(cond)
	}
}

// StatusIn returns a GORM scope restricting rows to the requested statuses.
// The pseudo-status "deleted" selects soft-deleted rows.
func StatusIn(q domain.ListQuery) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(q.Status) == 0 {
			return db
		}
		statuses := make([]string, 0, len(q.Status))
		wantDeleted := false
		for _, s := range q.Status {
			if s == "deleted" {
				wantDeleted = true
				continue
			}
			statuses = append(statuses, s)
		}
		switch {
		case wantDeleted && len(statuses) > 0:
			return db.Where("status IN ? OR deleted_at IS NOT NULL", statuses)
		case wantDeleted:
			return db.Where("deleted_at IS NOT NULL")
		default:
			return db.Where("status IN ?", statuses)
		}
	}
}

// Filter returns a GORM scope applying exact-match (IN) conditions for the
// custom filters. Keys outside the allowed list are silently ignored.
func Filter(q domain.ListQuery, allowed []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		keys := make([]string, 0, len(q.Filters))
		for key := range q.Filters {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			if !validFieldName.MatchString(key) || !isAllowed(key, allowed) {
				continue
			}
			db = db.Where(key+" IN ?", q.Filters[key])
		}
		return db
	}
}

// DateRange returns a GORM scope restricting the date field to [from, to].
func DateRange(q domain.ListQuery, allowed []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if q.DateField == "" || !validFieldName.MatchString(q.DateField) || !isAllowed(q.DateField, allowed) {
			return db
		}
		if q.DateFrom != nil {
			db = db.Where(q.DateField+" >= ?", *q.DateFrom)
		}
		if q.DateTo != nil {
			db = db.Where(q.DateField+" <= ?", *q.DateTo)
		}
		return db
	}
}

// NewPage creates a Page with computed pagination metadata.
func NewPage[T any](items []T, total int64, q domain.ListQuery) *domain.Page[T] {
	lastPage := 1
	if q.PerPage > 0 && total > 0 {
		lastPage = int(math.Ceil(float64(total) / float64(q.PerPage)))
	}

	if items == nil {
		items = []T{}
	}

	return &domain.Page[T]{
		Data: items,
		Meta: domain.PageMeta{
			CurrentPage: q.Page,
			PerPage:     q.PerPage,
			LastPage:    lastPage,
			Total:       total,
		},
	}
}

func isAllowed(field string, allowed []string) bool {
	return slices.Contains(allowed, field)
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// parseDateRange parses "from,to" where either side may be empty.
// A bare date on the "to" side covers the whole day.
func parseDateRange(raw string) (from, to *time.Time, ok bool) {
	start, end, _ := strings.Cut(raw, ",")
	from, _, err := parseDate(start)
	if err != nil {
		return nil, nil, false
	}
	to, isDate, err := parseDate(end)
	if err != nil {
		return nil, nil, false
	}
	if to != nil && isDate {
		eod := to.Add(24*time.Hour - time.Nanosecond)
		to = &eod
	}
	return from, to, from != nil || to != nil
}

func parseDate(raw string) (*time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false, err
	}
	return &t, false, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
