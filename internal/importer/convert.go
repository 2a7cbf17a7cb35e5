package importer

import (
	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/google/uuid"
)

// Convert transforms a validated ImportSchema into entities ready for
// Engine.Import: the campaign first, then each project followed by its tasks
// in file order. Call ValidateImportSchema first; Convert assumes the schema
// is valid.
func Convert(schema *ImportSchema) []*domain.Entity {
	campaignID := uuid.New().String()
	campaign := &domain.Entity{
		ID:      campaignID,
		Kind:    domain.KindCampaign,
		Name:    schema.Campaign.Name,
		Segment: schema.Campaign.Segment,
		State:   domain.State(schema.Campaign.State),
	}
	out := []*domain.Entity{campaign}

	tasksByProject := make(map[string][]TaskImport)
	for _, t := range schema.Tasks {
		tasksByProject[t.ProjectRef] = append(tasksByProject[t.ProjectRef], t)
	}

	for _, p := range schema.Projects {
		projectID := uuid.New().String()
		project := &domain.Entity{
			ID:        projectID,
			Kind:      domain.KindProject,
			ParentID:  &campaignID,
			Name:      p.Name,
			Segment:   p.Segment,
			State:     domain.State(p.State),
			BudgetOwn: copyBudget(p.Budget),
		}
		out = append(out, project)

		for _, t := range tasksByProject[p.Ref] {
			out = append(out, &domain.Entity{
				ID:        uuid.New().String(),
				Kind:      domain.KindTask,
				ParentID:  &projectID,
				Name:      t.Name,
				Segment:   t.Segment,
				State:     domain.State(t.State),
				BudgetOwn: copyBudget(t.Budget),
			})
		}
	}

	return out
}

func copyBudget(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
