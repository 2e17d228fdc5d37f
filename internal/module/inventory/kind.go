// Package inventory serves the FTTH inventory resources (locations, ODCs,
// ODPs, cables, joint boxes and clients) behind one generic list/CRUD/bulk surface.
package inventory

import (
	"time"

	"gorm.io/gorm"

	"github.com/simp-lee/ftthadmin/internal/domain"
	"github.com/simp-lee/ftthadmin/internal/pkg"
)

// entity is the constraint satisfied by pointers to inventory models.
type entity[E any] interface {
	*E
	domain.Entity
}

// Reference declares a foreign key that must point at an existing, not
// deleted row of Table.
type Reference[E any] struct {
	Field string // JSON name and column name
	Table string
	Label string
	Value func(*E) string
}

// Kind describes one inventory resource.
type Kind[E any] struct {
	Name       string // singular, used in messages
	Path       string // plural URL segment and preference key
	Query      pkg.QueryOptions
	Fallback   string // ORDER BY used when the request names no usable sort
	References []Reference[E]
	Validate   func(*E) map[string][]string
	Actions    []BulkAction // per-kind actions on top of the built-in ones
}

// BulkAction is a state transition applied to every eligible row of a bulk call.
type BulkAction struct {
	Name     string
	Eligible func(db *gorm.DB) *gorm.DB
	// Changes returns the column updates; now is the repository clock.
	Changes func(now time.Time) map[string]any
}

func activeAndPresent(db *gorm.DB) *gorm.DB {
	return db.Where("status = ? AND deleted_at IS NULL", domain.StatusActive)
}

// Built-in bulk actions. Eligibility mirrors domain.CanArchive and domain.CanRestore.
var (
	ActionArchive = BulkAction{
		Name:     domain.ActionArchive,
		Eligible: activeAndPresent,
		Changes:  func(time.Time) map[string]any { return map[string]any{"status": domain.StatusArchived} },
	}
	ActionDelete = BulkAction{
		Name:     domain.ActionDelete,
		Eligible: activeAndPresent,
		Changes:  func(now time.Time) map[string]any { return map[string]any{"deleted_at": now} },
	}
	ActionRestore = BulkAction{
		Name: domain.ActionRestore,
		Eligible: func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ? OR deleted_at IS NOT NULL", domain.StatusArchived)
		},
		Changes: func(time.Time) map[string]any {
			return map[string]any{"status": domain.StatusActive, "deleted_at": gorm.Expr("NULL")}
		},
	}
)

// ActionDeactivate suspends active clients without archiving them.
var ActionDeactivate = BulkAction{
	Name:     "deactivate",
	Eligible: activeAndPresent,
	Changes:  func(time.Time) map[string]any { return map[string]any{"status": domain.StatusInactive} },
}

var builtinActions = []BulkAction{ActionArchive, ActionDelete, ActionRestore}

var dateFields = []string{"created_at", "updated_at"}

// Locations is the "lokasi" resource.
var Locations = Kind[domain.Location]{
	Name: "location",
	Path: "locations",
	Query: pkg.QueryOptions{
		SortFields:   []string{"name", "region", "status", "created_at", "updated_at"},
		SearchFields: []string{"name", "address", "region"},
		FilterFields: []string{"region"},
		DateFields:   dateFields,
	},
	Fallback: "name asc",
}

// ODCs are optical distribution cabinets.
var ODCs = Kind[domain.ODC]{
	Name: "odc",
	Path: "odcs",
	Query: pkg.QueryOptions{
		SortFields:   []string{"code", "name", "capacity", "status", "created_at", "updated_at"},
		SearchFields: []string{"code", "name"},
		FilterFields: []string{"location_id"},
		DateFields:   dateFields,
	},
	Fallback: "code asc",
	References: []Reference[domain.ODC]{
		{Field: "location_id", Table: "locations", Label: "location", Value: func(e *domain.ODC) string { return e.LocationID }},
	},
}

// ODPs are optical distribution points.
var ODPs = Kind[domain.ODP]{
	Name: "odp",
	Path: "odps",
	Query: pkg.QueryOptions{
		SortFields:   []string{"code", "name", "capacity", "used_ports", "status", "created_at", "updated_at"},
		SearchFields: []string{"code", "name"},
		FilterFields: []string{"odc_id"},
		DateFields:   dateFields,
	},
	Fallback: "code asc",
	References: []Reference[domain.ODP]{
		{Field: "odc_id", Table: "odcs", Label: "odc", Value: func(e *domain.ODP) string { return e.ODCID }},
	},
	Validate: func(e *domain.ODP) map[string][]string {
		if e.Capacity > 0 && e.UsedPorts > e.Capacity {
			return map[string][]string{"used_ports": {"must not exceed capacity"}}
		}
		return nil
	},
}

// Cables are splitter cables. Used cores are bounded by tubes times cores
// per tube.
var Cables = Kind[domain.Cable]{
	Name: "cable",
	Path: "cables",
	Query: pkg.QueryOptions{
		SortFields:   []string{"code", "name", "tubes", "used_cores", "length_m", "status", "created_at", "updated_at"},
		SearchFields: []string{"code", "name"},
		FilterFields: []string{"odc_id"},
		DateFields:   dateFields,
	},
	Fallback: "code asc",
	References: []Reference[domain.Cable]{
		{Field: "odc_id", Table: "odcs", Label: "odc", Value: func(e *domain.Cable) string { return e.ODCID }},
	},
	Validate: func(e *domain.Cable) map[string][]string {
		if e.UsedCores > e.Cores() {
			return map[string][]string{"used_cores": {"must not exceed tubes times cores per tube"}}
		}
		return nil
	},
}

// JointBoxes are splice enclosures.
var JointBoxes = Kind[domain.JointBox]{
	Name: "joint box",
	Path: "joint_boxes",
	Query: pkg.QueryOptions{
		SortFields:   []string{"code", "name", "status", "created_at", "updated_at"},
		SearchFields: []string{"code", "name", "notes"},
		FilterFields: []string{"location_id"},
		DateFields:   dateFields,
	},
	Fallback: "code asc",
	References: []Reference[domain.JointBox]{
		{Field: "location_id", Table: "locations", Label: "location", Value: func(e *domain.JointBox) string { return e.LocationID }},
	},
}

// Clients are subscribers.
var Clients = Kind[domain.Client]{
	Name: "client",
	Path: "clients",
	Query: pkg.QueryOptions{
		SortFields:   []string{"name", "port", "package", "status", "installed_at", "created_at", "updated_at"},
		SearchFields: []string{"name", "phone", "address"},
		FilterFields: []string{"odp_id", "package"},
		DateFields:   []string{"installed_at", "created_at", "updated_at"},
	},
	Fallback: "name asc",
	References: []Reference[domain.Client]{
		{Field: "odp_id", Table: "odps", Label: "odp", Value: func(e *domain.Client) string { return e.ODPID }},
	},
	Actions: []BulkAction{ActionDeactivate},
}

// Models returns every inventory model for auto-migration.
func Models() []any {
	return []any{&domain.Location{}, &domain.ODC{}, &domain.ODP{}, &domain.Cable{}, &domain.JointBox{}, &domain.Client{}}
}
