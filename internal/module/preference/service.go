package preference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/simp-lee/ftthadmin/internal/domain"
)

// MaxValueBytes caps the size of one stored preference document.
const MaxValueBytes = 64 << 10

var validKey = regexp.MustCompile(`^[a-z][a-z0-9_.-]{0,99}$`)

// Service defines preference operations.
type Service interface {
	Load(ctx context.Context, userID uint, key string) (json.RawMessage, error)
	Save(ctx context.Context, userID uint, key string, value json.RawMessage) error
}

// preferenceService implements Service.
type preferenceService struct {
	repo domain.PreferenceRepository
}

// NewService creates a new Service with the given repository.
func NewService(repo domain.PreferenceRepository) Service {
	return &preferenceService{repo: repo}
}

// Load returns the stored document, or ErrNotFound when none was saved yet.
func (s *preferenceService) Load(ctx context.Context, userID uint, key string) (json.RawMessage, error) {
	if !validKey.MatchString(key) {
		return nil, domain.FieldError("key", "invalid preference key")
	}
	pref, err := s.repo.Get(ctx, userID, key)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(pref.Value), nil
}

// Save stores value, which must be a JSON object, under key.
func (s *preferenceService) Save(ctx context.Context, userID uint, key string, value json.RawMessage) error {
	fields := make(map[string][]string)
	if !validKey.MatchString(key) {
		fields["key"] = append(fields["key"], "invalid preference key")
	}
	switch trimmed := bytes.TrimSpace(value); {
	case len(trimmed) > MaxValueBytes:
		fields["value"] = append(fields["value"], fmt.Sprintf("max=%d bytes", MaxValueBytes))
	case !json.Valid(trimmed) || len(trimmed) == 0 || trimmed[0] != '{':
		fields["value"] = append(fields["value"], "must be a JSON object")
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		return domain.FieldError("value", "must be a JSON object")
	}
	return s.repo.Upsert(ctx, &domain.Preference{UserID: userID, Key: key, Value: compact.String()})
}
