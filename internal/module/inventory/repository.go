package inventory

import (
	"context"
	"slices"
	"time"

	"gorm.io/gorm"

	"github.com/simp-lee/ftthadmin/internal/domain"
	"github.com/simp-lee/ftthadmin/internal/pkg"
)

// StatusCounts is the per-status tally of one resource.
type StatusCounts struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
	Archived int64 `json:"archived"`
	Deleted  int64 `json:"deleted"`
}

// Repository persists one inventory resource.
type Repository[E any] interface {
	List(ctx context.Context, q domain.ListQuery) (*domain.Page[E], error)
	GetByID(ctx context.Context, id string) (*E, error)
	Create(ctx context.Context, e *E) error
	Update(ctx context.Context, e *E) error
	Bulk(ctx context.Context, action BulkAction, ids []string) ([]E, error)
	Exists(ctx context.Context, table, id string) (bool, error)
	Stats(ctx context.Context) (StatusCounts, error)
}

// repository implements Repository using GORM.
type repository[E any] struct {
	db   *gorm.DB
	kind Kind[E]
	now  func() time.Time
}

// NewRepository creates a Repository for kind backed by the given GORM database.
func NewRepository[E any](db *gorm.DB, kind Kind[E]) Repository[E] {
	return &repository[E]{db: db, kind: kind, now: time.Now}
}

// List returns one page of rows matching the query. Soft-deleted rows are
// included; callers narrow them with the "deleted" pseudo-status.
func (r *repository[E]) List(ctx context.Context, q domain.ListQuery) (*domain.Page[E], error) {
	opts := r.kind.Query
	filtered := func(db *gorm.DB) *gorm.DB {
		return db.Scopes(
			pkg.Search(q, opts.SearchFields),
			pkg.StatusIn(q),
			pkg.Filter(q, opts.FilterFields),
			pkg.DateRange(q, opts.DateFields),
		)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(new(E)).Scopes(filtered).Count(&total).Error; err != nil {
		return nil, pkg.MapDBError(err)
	}

	var items []E
	if err := r.db.WithContext(ctx).
		Scopes(filtered, pkg.Sort(q, opts.SortFields, r.kind.Fallback), pkg.Paginate(q)).
		Find(&items).Error; err != nil {
		return nil, pkg.MapDBError(err)
	}

	return pkg.NewPage(items, total, q), nil
}

// GetByID retrieves a row by its primary key, deleted or not.
func (r *repository[E]) GetByID(ctx context.Context, id string) (*E, error) {
	e := new(E)
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(e).Error; err != nil {
		return nil, pkg.MapDBError(err)
	}
	return e, nil
}

// Create inserts a new row.
func (r *repository[E]) Create(ctx context.Context, e *E) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return pkg.MapDBError(err)
	}
	return nil
}

// Update saves every column of an existing row.
func (r *repository[E]) Update(ctx context.Context, e *E) error {
	if err := r.db.WithContext(ctx).Save(e).Error; err != nil {
		return pkg.MapDBError(err)
	}
	return nil
}

// Bulk applies action to the eligible rows among ids inside one transaction
// and returns those rows as stored afterwards. Unknown ids fail the whole
// call; ineligible rows are left untouched.
func (r *repository[E]) Bulk(ctx context.Context, action BulkAction, ids []string) ([]E, error) {
	affected := []E{}
	err := pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		var found []string
		if err := tx.Model(new(E)).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
			return pkg.MapDBError(err)
		}
		if missing := missingIDs(ids, found); len(missing) > 0 {
			msgs := make([]string, len(missing))
			for i, id := range missing {
				msgs[i] = "unknown id " + id
			}
			return domain.NewValidationError(map[string][]string{"ids": msgs})
		}

		var eligible []string
		if err := tx.Model(new(E)).Where("id IN ?", ids).Scopes(action.Eligible).
			Pluck("id", &eligible).Error; err != nil {
			return pkg.MapDBError(err)
		}
		if len(eligible) == 0 {
			return nil
		}

		now := r.now()
		changes := action.Changes(now)
		changes["updated_at"] = now
		if err := tx.Model(new(E)).Where("id IN ?", eligible).Updates(changes).Error; err != nil {
			return pkg.MapDBError(err)
		}
		if err := tx.Where("id IN ?", eligible).Order("id").Find(&affected).Error; err != nil {
			return pkg.MapDBError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}

// Exists reports whether table holds a row with the given id that is not deleted.
func (r *repository[E]) Exists(ctx context.Context, table, id string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Table(table).
		Where("id = ? AND deleted_at IS NULL", id).Count(&n).Error; err != nil {
		return false, pkg.MapDBError(err)
	}
	return n > 0, nil
}

// Stats counts rows per status. Deleted rows are only counted as deleted.
func (r *repository[E]) Stats(ctx context.Context) (StatusCounts, error) {
	var rows []struct {
		Status string
		N      int64
	}
	if err := r.db.WithContext(ctx).Model(new(E)).
		Select("status, COUNT(*) AS n").
		Where("deleted_at IS NULL").
		Group("status").
		Scan(&rows).Error; err != nil {
		return StatusCounts{}, pkg.MapDBError(err)
	}

	var counts StatusCounts
	for _, row := range rows {
		switch row.Status {
		case domain.StatusActive:
			counts.Active = row.N
		case domain.StatusInactive:
			counts.Inactive = row.N
		case domain.StatusArchived:
			counts.Archived = row.N
		}
		counts.Total += row.N
	}

	if err := r.db.WithContext(ctx).Model(new(E)).
		Where("deleted_at IS NOT NULL").Count(&counts.Deleted).Error; err != nil {
		return StatusCounts{}, pkg.MapDBError(err)
	}
	counts.Total += counts.Deleted
	return counts, nil
}

func missingIDs(want, found []string) []string {
	var missing []string
	for _, id := range want {
		if !slices.Contains(found, id) {
			missing = append(missing, id)
		}
	}
	return missing
}
