package domain

import "time"

// Resource status vocabulary shared by every inventory entity.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusInactive = "inactive"
)

// Statuses lists the accepted values of InventoryModel.Status.
var Statuses = []string{StatusActive, StatusInactive, StatusArchived}

// InventoryModel is the common base struct for inventory entities.
// DeletedAt is a plain nullable timestamp rather than gorm.DeletedAt: deleted
// rows stay visible to list queries so they can be restored.
type InventoryModel struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Status    string     `gorm:"size:20;index;not null" json:"status"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// BaseModel is the base struct for account-level models (users, preferences).
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListQuery holds pagination, sorting, and filtering parameters of a list request.
type ListQuery struct {
	Page          int
	PerPage       int
	Search        string
	SortField     string
	SortDirection string // "asc" or "desc"
	Status        []string
	Filters       map[string][]string
	DateField     string
	DateFrom      *time.Time
	DateTo        *time.Time
}

// PageMeta is the pagination metadata of a list response.
type PageMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	LastPage    int   `json:"last_page"`
	Total       int64 `json:"total"`
}

// Page is one page of list results.
type Page[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}
