package console

import (
	"strconv"
	"time"

	"github.com/simp-lee/ftthadmin/internal/datatable"
	"github.com/simp-lee/ftthadmin/internal/domain"
)

// Spec declares one resource list of the console.
type Spec struct {
	Title    string
	Resource string // singular, e.g. "odp"
	Path     string // endpoint path without slash, e.g. "odps"
	Query    datatable.QueryOptions
	Columns  []datatable.Column
	Actions  []datatable.Action
	// SortField is the default sort column.
	SortField string
}

// BasePath returns the list endpoint path of the resource.
func (s Spec) BasePath() string { return "/" + s.Path }

// DeactivateAction takes an active client offline without archiving it.
var DeactivateAction = datatable.Action{
	Name:    "deactivate",
	Label:   "Deactivate",
	Allowed: datatable.CanArchive,
	Confirm: true,
}

var dateFields = []string{"created_at", "updated_at"}

// Specs lists the console's resources in tab order.
func Specs() []Spec {
	return []Spec{
		{
			Title:    "Locations",
			Resource: "location",
			Path:     "locations",
			Query:    datatable.QueryOptions{CustomKey: "region", DateFields: dateFields},
			Columns: []datatable.Column{
				text("name", "Name", 24),
				text("region", "Region", 14),
				text("address", "Address", 30),
				status(),
				date("created_at", "Created"),
			},
			SortField: "name",
		},
		{
			Title:    "ODC",
			Resource: "odc",
			Path:     "odcs",
			Query:    datatable.QueryOptions{CustomKey: "location_id", DateFields: dateFields},
			Columns: []datatable.Column{
				text("code", "Code", 12),
				text("name", "Name", 24),
				sum("capacity", "Capacity"),
				status(),
				date("created_at", "Created"),
			},
			SortField: "code",
		},
		{
			Title:    "ODP",
			Resource: "odp",
			Path:     "odps",
			Query:    datatable.QueryOptions{CustomKey: "odc_id", DateFields: dateFields},
			Columns: []datatable.Column{
				text("code", "Code", 12),
				text("name", "Name", 22),
				sum("capacity", "Ports"),
				sum("used_ports", "Used"),
				status(),
				date("created_at", "Created"),
			},
			SortField: "code",
		},
		{
			Title:    "Cables",
			Resource: "cable",
			Path:     "cables",
			Query:    datatable.QueryOptions{CustomKey: "odc_id", DateFields: dateFields},
			Columns: []datatable.Column{
				text("code", "Code", 12),
				text("name", "Name", 22),
				text("tubes", "Tubes", 6),
				withFooter(cores(), func(rows []datatable.Resource) string {
					total := 0.0
					for _, r := range rows {
						total += coreCount(r)
					}
					return strconv.FormatFloat(total, 'f', -1, 64)
				}),
				sum("used_cores", "Used"),
				sum("length_m", "Length m"),
				status(),
			},
			SortField: "code",
		},
		{
			Title:    "Joint boxes",
			Resource: "joint_box",
			Path:     "joint_boxes",
			Query:    datatable.QueryOptions{CustomKey: "location_id", DateFields: dateFields},
			Columns: []datatable.Column{
				text("code", "Code", 12),
				text("name", "Name", 22),
				text("notes", "Notes", 30),
				status(),
			},
			SortField: "code",
		},
		{
			Title:    "Clients",
			Resource: "client",
			Path:     "clients",
			Query: datatable.QueryOptions{
				CustomKey:  "odp_id",
				DateFields: []string{"installed_at", "created_at", "updated_at"},
			},
			Columns: []datatable.Column{
				withFooter(text("name", "Name", 22), countRows),
				text("phone", "Phone", 14),
				text("package", "Package", 14),
				text("port", "Port", 5),
				status(),
				date("installed_at", "Installed"),
			},
			Actions:   append(datatable.StandardActions(), DeactivateAction),
			SortField: "name",
		},
	}
}

// FindSpec looks a resource up by path ("odps") or singular name ("odp").
func FindSpec(name string) (Spec, bool) {
	for _, s := range Specs() {
		if s.Path == name || s.Resource == name {
			return s, true
		}
	}
	return Spec{}, false
}

func text(key, title string, width int) datatable.Column {
	return datatable.Column{
		Key:   key,
		Title: title,
		Width: width,
		Value: func(r datatable.Resource) string { return r.String(key) },
	}
}

func status() datatable.Column {
	return datatable.Column{
		Key:   "status",
		Title: "Status",
		Width: 10,
		Value: func(r datatable.Resource) string {
			if r.Deleted() {
				return "deleted"
			}
			return r.Status
		},
	}
}

func date(key, title string) datatable.Column {
	return datatable.Column{
		Key:   key,
		Title: title,
		Width: 11,
		Value: func(r datatable.Resource) string {
			raw := r.String(key)
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				return t.Format(time.DateOnly)
			}
			return raw
		},
	}
}

// sum is a numeric column whose footer totals the visible rows.
func sum(key, title string) datatable.Column {
	return withFooter(text(key, title, 9), func(rows []datatable.Resource) string {
		total := 0.0
		for _, r := range rows {
			if n, ok := r.Number(key); ok {
				total += n
			}
		}
		return strconv.FormatFloat(total, 'f', -1, 64)
	})
}

// cores is the derived tubes times cores-per-tube column of cables.
func cores() datatable.Column {
	return datatable.Column{
		Title: "Cores",
		Width: 6,
		Value: func(r datatable.Resource) string { return strconv.FormatFloat(coreCount(r), 'f', -1, 64) },
	}
}

func coreCount(r datatable.Resource) float64 {
	tubes, _ := r.Number("tubes")
	perTube, _ := r.Number("cores_per_tube")
	return tubes * perTube
}

func countRows(rows []datatable.Resource) string {
	return strconv.Itoa(len(rows)) + " rows"
}

func withFooter(c datatable.Column, footer func([]datatable.Resource) string) datatable.Column {
	c.Footer = footer
	return c
}

// statusCycle is the order the status filter key steps through; nil shows all.
var statusCycle = [][]string{
	nil,
	{domain.StatusActive},
	{domain.StatusInactive},
	{domain.StatusArchived},
	{"deleted"},
}
