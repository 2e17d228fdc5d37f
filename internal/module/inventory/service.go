package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/simp-lee/ftthadmin/internal/domain"
)

// Service defines the business operations of one inventory resource.
type Service[E any] interface {
	List(ctx context.Context, q domain.ListQuery) (*domain.Page[E], error)
	Get(ctx context.Context, id string) (*E, error)
	Create(ctx context.Context, e *E) (*E, error)
	Update(ctx context.Context, id string, e *E) (*E, error)
	Bulk(ctx context.Context, action string, ids []string) ([]E, error)
	Stats(ctx context.Context) (StatusCounts, error)
}

// service implements Service.
type service[E any, P entity[E]] struct {
	repo    Repository[E]
	kind    Kind[E]
	actions map[string]BulkAction
}

// NewService creates a Service for kind on top of repo.
func NewService[E any, P entity[E]](repo Repository[E], kind Kind[E]) Service[E] {
	actions := make(map[string]BulkAction, len(builtinActions)+len(kind.Actions))
	for _, a := range builtinActions {
		actions[a.Name] = a
	}
	for _, a := range kind.Actions {
		actions[a.Name] = a
	}
	return &service[E, P]{repo: repo, kind: kind, actions: actions}
}

// List returns one page of rows.
func (s *service[E, P]) List(ctx context.Context, q domain.ListQuery) (*domain.Page[E], error) {
	return s.repo.List(ctx, q)
}

// Get returns a row by id.
func (s *service[E, P]) Get(ctx context.Context, id string) (*E, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err)
	}
	return e, nil
}

// Create assigns an id, defaults the status to active and inserts the row.
func (s *service[E, P]) Create(ctx context.Context, e *E) (*E, error) {
	inv := P(e).Inventory()
	inv.ID = uuid.NewString()
	inv.DeletedAt = nil
	if inv.Status == "" {
		inv.Status = domain.StatusActive
	}

	if err := s.validate(ctx, e); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, s.conflict(err)
	}
	return e, nil
}

// Update replaces the editable columns of an existing row. Identity,
// creation time and deletion state are kept from the stored row.
func (s *service[E, P]) Update(ctx context.Context, id string, e *E) (*E, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err)
	}
	cur := P(existing).Inventory()
	inv := P(e).Inventory()
	inv.ID = cur.ID
	inv.CreatedAt = cur.CreatedAt
	inv.DeletedAt = cur.DeletedAt
	if inv.Status == "" {
		inv.Status = cur.Status
	}

	if err := s.validate(ctx, e); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, s.conflict(err)
	}
	return e, nil
}

// Bulk applies the named action to ids and returns the rows it changed.
func (s *service[E, P]) Bulk(ctx context.Context, action string, ids []string) ([]E, error) {
	a, ok := s.actions[action]
	if !ok {
		return nil, domain.FieldError("action", fmt.Sprintf("unsupported action %q", action))
	}

	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(unique, id) {
			unique = append(unique, id)
		}
	}
	switch {
	case len(unique) == 0:
		return nil, domain.FieldError("ids", "required")
	case len(unique) > domain.MaxBulkIDs:
		return nil, domain.FieldError("ids", fmt.Sprintf("max=%d", domain.MaxBulkIDs))
	}

	rows, err := s.repo.Bulk(ctx, a, unique)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "bulk action applied",
		"resource", s.kind.Path,
		"action", a.Name,
		"requested", len(unique),
		"affected", len(rows),
	)
	return rows, nil
}

// Stats counts rows per status.
func (s *service[E, P]) Stats(ctx context.Context) (StatusCounts, error) {
	return s.repo.Stats(ctx)
}

func (s *service[E, P]) validate(ctx context.Context, e *E) error {
	fields := make(map[string][]string)

	if status := P(e).Inventory().Status; !slices.Contains(domain.Statuses, status) {
		fields["status"] = append(fields["status"], "must be one of "+strings.Join(domain.Statuses, ", "))
	}

	for _, ref := range s.kind.References {
		id := ref.Value(e)
		if id == "" {
			continue
		}
		ok, err := s.repo.Exists(ctx, ref.Table, id)
		if err != nil {
			return err
		}
		if !ok {
			fields[ref.Field] = append(fields[ref.Field], ref.Label+" not found")
		}
	}

	if s.kind.Validate != nil {
		for field, msgs := range s.kind.Validate(e) {
			fields[field] = append(fields[field], msgs...)
		}
	}

	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}

func (s *service[E, P]) notFound(err error) error {
	if domain.IsNotFound(err) {
		return domain.NewAppError(domain.CodeNotFound, s.kind.Name+" not found", err)
	}
	return err
}

// conflict turns a unique-index violation into a field error on "code",
// the only unique column of the inventory models.
func (s *service[E, P]) conflict(err error) error {
	if domain.IsAlreadyExists(err) {
		return domain.FieldError("code", s.kind.Name+" code already exists")
	}
	return err
}
