package datatable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Resource is the minimal shape the table needs from a row: an id plus the
// two attributes the action predicates read. Everything else stays in Fields
// and is read only through column accessors.
type Resource struct {
	ID        string
	Status    string
	DeletedAt *time.Time
	Fields    map[string]any
}

// UnmarshalJSON decodes any JSON object with "id", "status" and "deleted_at"
// keys. Numbers in Fields are kept as json.Number.
func (r *Resource) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("resource: expected JSON object")
	}

	*r = Resource{Fields: raw}
	switch id := raw["id"].(type) {
	case string:
		r.ID = id
	case json.Number:
		r.ID = id.String()
	case nil:
	default:
		return fmt.Errorf("resource: unsupported id type %T", id)
	}
	if status, ok := raw["status"].(string); ok {
		r.Status = status
	}
	if deleted, ok := raw["deleted_at"].(string); ok && deleted != "" {
		t, err := time.Parse(time.RFC3339Nano, deleted)
		if err != nil {
			return fmt.Errorf("resource %s: invalid deleted_at: %w", r.ID, err)
		}
		r.DeletedAt = &t
	}
	return nil
}

// MarshalJSON writes Fields back out, so a decoded page can be re-encoded
// without loss.
func (r Resource) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["id"] = r.ID
	out["status"] = r.Status
	if r.DeletedAt != nil {
		out["deleted_at"] = r.DeletedAt.Format(time.RFC3339Nano)
	} else {
		out["deleted_at"] = nil
	}
	return json.Marshal(out)
}

// Deleted reports whether the row carries a deletion timestamp.
func (r Resource) Deleted() bool { return r.DeletedAt != nil }

// String returns Fields[name] formatted for display; missing or null values
// render as the empty string.
func (r Resource) String(name string) string {
	switch v := r.Fields[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Number returns Fields[name] as a float64 and whether it held a number.
func (r Resource) Number(name string) (float64, bool) {
	switch v := r.Fields[name].(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// PageMeta is the pagination part of a list response.
type PageMeta struct {
	CurrentPage  int   `json:"current_page"`
	PerPage      int   `json:"per_page"`
	TotalPages   int   `json:"last_page"`
	TotalRecords int64 `json:"total"`
}

// ResultPage is one page of rows as returned by a list endpoint.
type ResultPage struct {
	Rows []Resource `json:"data"`
	Meta PageMeta   `json:"meta"`
}

// IDs returns the row ids in display order.
func (p *ResultPage) IDs() []string {
	if p == nil {
		return nil
	}
	ids := make([]string, len(p.Rows))
	for i, row := range p.Rows {
		ids[i] = row.ID
	}
	return ids
}

// Lookup returns the rows whose ids are in ids, in page order.
func (p *ResultPage) Lookup(ids []string) []Resource {
	if p == nil || len(ids) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []Resource
	for _, row := range p.Rows {
		if _, ok := want[row.ID]; ok {
			out = append(out, row)
		}
	}
	return out
}
