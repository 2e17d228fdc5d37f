package preference

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simp-lee/ftthadmin/internal/domain"
	"github.com/simp-lee/ftthadmin/internal/pkg"
)

// preferenceRepository implements domain.PreferenceRepository using GORM.
type preferenceRepository struct {
	db *gorm.DB
}

// NewPreferenceRepository creates a new PreferenceRepository backed by the given GORM database.
func NewPreferenceRepository(db *gorm.DB) domain.PreferenceRepository {
	return &preferenceRepository{db: db}
}

// Get retrieves the preference stored under key for userID.
func (r *preferenceRepository) Get(ctx context.Context, userID uint, key string) (*domain.Preference, error) {
	var pref domain.Preference
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND key = ?", userID, key).
		First(&pref).Error; err != nil {
		return nil, pkg.MapDBError(err)
	}
	return &pref, nil
}

// Upsert inserts the preference or replaces the value of the existing one.
func (r *preferenceRepository) Upsert(ctx context.Context, pref *domain.Preference) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(pref).Error
	if err != nil {
		return pkg.MapDBError(err)
	}
	return nil
}
