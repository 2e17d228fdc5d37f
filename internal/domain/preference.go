package domain

import "context"

// Preference is an opaque per-user, per-table settings document.
// Keys follow the "<resource>s" convention, e.g. "odps".
type Preference struct {
	BaseModel
	UserID uint   `gorm:"uniqueIndex:idx_preference_user_key;not null" json:"-"`
	Key    string `gorm:"uniqueIndex:idx_preference_user_key;size:100;not null" json:"key"`
	Value  string `gorm:"type:text;not null" json:"-"`
}

// PreferenceRepository persists preferences.
type PreferenceRepository interface {
	Get(ctx context.Context, userID uint, key string) (*Preference, error)
	Upsert(ctx context.Context, pref *Preference) error
}
