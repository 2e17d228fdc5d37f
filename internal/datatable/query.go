package datatable

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// QueryOptions describes how a dataset names its optional list parameters.
type QueryOptions struct {
	// CustomKey is the query parameter carrying ViewState.Custom, e.g. "odc_id".
	CustomKey string
	// DateFields are the date columns a range may apply to, in lookup order.
	DateFields []string
	Vocab      SortVocabulary
}

// EncodeQuery projects s onto the list endpoint's query string. Parameters
// appear in a fixed order, so equal states give byte-identical strings. Empty
// values are omitted except sort: an empty "sort=" records a cleared sort so
// decoding does not fall back to a default column.
func EncodeQuery(s ViewState, opts QueryOptions) string {
	var b strings.Builder
	add := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}

	add("per_page", strconv.Itoa(s.PageSize))
	add("page", strconv.Itoa(s.Page))
	if s.Filter != "" {
		add("filter", s.Filter)
	}
	add("sort", SortPayload(s.SortField, s.SortDirection))
	if len(s.Status) > 0 {
		add("status", strings.Join(s.Status, ","))
	}
	if opts.CustomKey != "" && len(s.Custom) > 0 {
		add(opts.CustomKey, strings.Join(s.Custom, ","))
	}
	if s.DateRangeField != "" && s.DateRange != nil {
		add(s.DateRangeField, formatDate(s.DateRange.From)+","+formatDate(s.DateRange.To))
	}
	return b.String()
}

// EncodeEndpoint joins base and the encoded state into the fetch key.
func EncodeEndpoint(base string, s ViewState, opts QueryOptions) string {
	return base + "?" + EncodeQuery(s, opts)
}

// DecodeViewState rebuilds a ViewState from query parameters. Parameters that
// are absent or malformed keep their value from defaults.
func DecodeViewState(values url.Values, defaults ViewState, opts QueryOptions) ViewState {
	s := defaults.Clone()

	if n, err := strconv.Atoi(values.Get("per_page")); err == nil {
		s.PageSize = n
	}
	if n, err := strconv.Atoi(values.Get("page")); err == nil && n >= 1 {
		s.Page = n
	}
	if values.Has("filter") {
		s.Filter = values.Get("filter")
	}
	if values.Has("sort") {
		s.SortField, s.SortDirection = opts.Vocab.ParseSortPayload(values.Get("sort"))
	}
	if values.Has("status") {
		s.Status = splitList(values.Get("status"))
	}
	if opts.CustomKey != "" && values.Has(opts.CustomKey) {
		s.Custom = splitList(values.Get(opts.CustomKey))
	}
	for _, field := range opts.DateFields {
		if r, ok := parseDateRange(values.Get(field)); ok {
			s.DateRangeField = field
			s.DateRange = r
			break
		}
	}
	return normalizeState(s, opts.Vocab)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// parseDateRange parses "from,to" where either side may be empty but not both.
func parseDateRange(raw string) (*DateRange, bool) {
	start, end, _ := strings.Cut(raw, ",")
	var r DateRange
	var err error
	if start = strings.TrimSpace(start); start != "" {
		if r.From, err = time.Parse(time.DateOnly, start); err != nil {
			return nil, false
		}
	}
	if end = strings.TrimSpace(end); end != "" {
		if r.To, err = time.Parse(time.DateOnly, end); err != nil {
			return nil, false
		}
	}
	if r.From.IsZero() && r.To.IsZero() {
		return nil, false
	}
	return &r, true
}
