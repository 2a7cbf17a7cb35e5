package importer

import (
	"fmt"

	"github.com/alexanderramin/rollup/internal/domain"
)

// ValidateImportSchema checks the import schema for errors before conversion.
// Returns a slice of all validation errors found.
func ValidateImportSchema(schema *ImportSchema) []error {
	var errs []error

	c := schema.Campaign
	if c.Name == "" {
		errs = append(errs, fmt.Errorf("campaign.name is required"))
	}
	errs = append(errs, validateState("campaign.state", domain.KindCampaign, c.State, len(schema.Projects) > 0)...)

	projectRefs := make(map[string]bool)
	parentsWithTasks := make(map[string]bool)
	for _, t := range schema.Tasks {
		parentsWithTasks[t.ProjectRef] = true
	}
	for i, p := range schema.Projects {
		prefix := fmt.Sprintf("projects[%d]", i)
		if p.Ref == "" {
			errs = append(errs, fmt.Errorf("%s.ref is required", prefix))
		} else if projectRefs[p.Ref] {
			errs = append(errs, fmt.Errorf("%s.ref: duplicate ref %q", prefix, p.Ref))
		} else {
			projectRefs[p.Ref] = true
		}
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		errs = append(errs, validateBudget(prefix+".budget", p.Budget)...)
		errs = append(errs, validateState(prefix+".state", domain.KindProject, p.State, parentsWithTasks[p.Ref])...)
	}

	taskRefs := make(map[string]bool)
	for i, t := range schema.Tasks {
		prefix := fmt.Sprintf("tasks[%d]", i)
		if t.Ref != "" {
			if taskRefs[t.Ref] {
				errs = append(errs, fmt.Errorf("%s.ref: duplicate ref %q", prefix, t.Ref))
			}
			taskRefs[t.Ref] = true
		}
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if t.ProjectRef == "" {
			errs = append(errs, fmt.Errorf("%s.project_ref is required", prefix))
		} else if !projectRefs[t.ProjectRef] {
			errs = append(errs, fmt.Errorf("%s.project_ref: unknown project %q", prefix, t.ProjectRef))
		}
		errs = append(errs, validateBudget(prefix+".budget", t.Budget)...)
		errs = append(errs, validateState(prefix+".state", domain.KindTask, t.State, false)...)
	}

	return errs
}

// validateState accepts an empty state (the kind's initial one) or any state
// of the kind. A terminal state is refused when children follow, since a
// terminal parent accepts no new children.
func validateState(field string, kind domain.Kind, s string, hasChildren bool) []error {
	if s == "" {
		return nil
	}
	st := domain.State(s)
	if !domain.MachineFor(kind).HasState(st) {
		return []error{fmt.Errorf("%s: %q is not a %s state", field, s, kind)}
	}
	if hasChildren && domain.IsTerminal(kind, st) {
		return []error{fmt.Errorf("%s: %q is terminal but children are listed", field, s)}
	}
	return nil
}

func validateBudget(field string, v *int64) []error {
	if v != nil && *v < 0 {
		return []error{fmt.Errorf("%s: must not be negative, got %d", field, *v)}
	}
	return nil
}
