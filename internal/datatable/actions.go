package datatable

import "github.com/simp-lee/ftthadmin/internal/domain"

// Action describes an operation offered per row and in the bulk toolbar.
type Action struct {
	Name    string
	Label   string
	Allowed func(Resource) bool
	// Confirm asks the render layer to confirm before dispatching.
	Confirm bool
}

// Built-in actions understood by every inventory bulk endpoint.
var (
	ArchiveAction = Action{Name: domain.ActionArchive, Label: "Archive", Allowed: CanArchive, Confirm: true}
	DeleteAction  = Action{Name: domain.ActionDelete, Label: "Delete", Allowed: CanArchive, Confirm: true}
	RestoreAction = Action{Name: domain.ActionRestore, Label: "Restore", Allowed: CanRestore}
)

// StandardActions lists the built-in actions in toolbar order.
func StandardActions() []Action {
	return []Action{ArchiveAction, DeleteAction, RestoreAction}
}

// CanArchive reports whether archive and delete apply to r.
func CanArchive(r Resource) bool {
	return domain.CanArchive(r.Status, r.DeletedAt)
}

// CanRestore reports whether restore applies to r.
func CanRestore(r Resource) bool {
	return domain.CanRestore(r.Status, r.DeletedAt)
}

// RowActions returns the actions allowed for a single row.
func RowActions(actions []Action, r Resource) []Action {
	var out []Action
	for _, a := range actions {
		if a.Allowed == nil || a.Allowed(r) {
			out = append(out, a)
		}
	}
	return out
}

// BulkActions returns the actions offered for a selection: an action is
// offered when at least one selected row allows it.
func BulkActions(actions []Action, selected []Resource) []Action {
	if len(selected) == 0 {
		return nil
	}
	var out []Action
	for _, a := range actions {
		for _, r := range selected {
			if a.Allowed == nil || a.Allowed(r) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// FindAction looks an action up by name.
func FindAction(actions []Action, name string) (Action, bool) {
	for _, a := range actions {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}
