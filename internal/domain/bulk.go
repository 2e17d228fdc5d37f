package domain

import "time"

// Bulk action names understood by every inventory endpoint.
const (
	ActionArchive = "archive"
	ActionDelete  = "delete"
	ActionRestore = "restore"
)

// MaxBulkIDs caps the number of ids accepted by a single bulk call.
const MaxBulkIDs = 100

// BulkRequest is the body of POST /<resource>s/bulk.
type BulkRequest struct {
	Action string   `json:"action" binding:"required,max=50"`
	IDs    []string `json:"ids" binding:"required,min=1,max=100,dive,required"`
}

// CanArchive reports whether a row in the given state may be archived or deleted.
func CanArchive(status string, deletedAt *time.Time) bool {
	return status == StatusActive && deletedAt == nil
}

// CanRestore reports whether a row in the given state may be restored.
func CanRestore(status string, deletedAt *time.Time) bool {
	return status == StatusArchived || deletedAt != nil
}
