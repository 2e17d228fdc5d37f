package preference

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/simp-lee/ftthadmin/internal/domain"
)

func TestPreferenceService_SaveAndLoad(t *testing.T) {
	svc := NewService(NewPreferenceRepository(setupTestDB(t)))
	ctx := context.Background()

	doc := json.RawMessage(`{ "filter": "odp", "page": 2 }`)
	if err := svc.Save(ctx, 0, "odps", doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := svc.Load(ctx, 0, "odps")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != `{"filter":"odp","page":2}` {
		t.Errorf("Load = %s", got)
	}
}

func TestPreferenceService_SaveValidation(t *testing.T) {
	svc := NewService(NewPreferenceRepository(setupTestDB(t)))

	tests := []struct {
		name  string
		key   string
		value string
		field string
	}{
		{"array value", "odps", `[1,2]`, "value"},
		{"invalid json", "odps", `{"page":`, "value"},
		{"empty value", "odps", ``, "value"},
		{"oversized value", "odps", `{"x":"` + strings.Repeat("a", MaxValueBytes) + `"}`, "value"},
		{"bad key", "Odps/../x", `{}`, "key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Save(context.Background(), 1, tt.key, json.RawMessage(tt.value))
			if fields := domain.ValidationFields(err); len(fields[tt.field]) == 0 {
				t.Fatalf("expected %s field error, got %v", tt.field, err)
			}
		})
	}
}
