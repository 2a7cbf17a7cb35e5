package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/alexanderramin/rollup/internal/service"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// FormatEntity renders a one-line summary such as
// "Launch 1a2b3c4d  ● active".
func FormatEntity(e *domain.Entity) string {
	return fmt.Sprintf("%s %s  %s", Bold(e.Name), TruncID(e.ID), StatePill(e.State))
}

// FormatResult summarizes a façade call: the entity's resulting state, then
// one line per kind of cascaded effect and one per warning.
func FormatResult(res *service.Result) string {
	var b strings.Builder
	if res.Entity != nil {
		b.WriteString(FormatEntity(res.Entity))
		if res.NoOp {
			b.WriteString(Dim("  (unchanged)"))
		}
		b.WriteString("\n")
	}

	effects := []struct {
		label string
		ids   []string
	}{
		{"created", res.Created},
		{"closed", res.Closed},
		{"propagated", res.Propagated},
		{"skipped", res.Skipped},
		{"restored", res.Restored},
		{"recomputed", res.Recomputed},
	}
	for _, ef := range effects {
		if len(ef.ids) == 0 {
			continue
		}
		refs := make([]string, len(ef.ids))
		for i, id := range ef.ids {
			refs[i] = TruncID(id)
		}
		b.WriteString(fmt.Sprintf("  %-11s %3d  %s\n", ef.label, len(ef.ids), strings.Join(refs, " ")))
	}
	for _, w := range res.Warnings {
		b.WriteString(StyleYellow.Render("  warning: "+w) + "\n")
	}
	return b.String()
}

// FormatHistory renders the audit trail of one entity as a table.
func FormatHistory(entries []domain.HistoryEntry) string {
	if len(entries) == 0 {
		return Dim("No recorded state changes.") + "\n"
	}
	rows := make([][]string, 0, len(entries))
	for _, h := range entries {
		from := Dim("--")
		if h.FromState != "" {
			from = StateStyle(h.FromState).Render(string(h.FromState))
		}
		rows = append(rows, []string{
			h.At.UTC().Format(historyTimeLayout),
			from,
			StateStyle(h.ToState).Render(string(h.ToState)),
			string(h.Cause),
			h.Actor,
		})
	}
	return RenderTable([]string{"AT", "FROM", "TO", "CAUSE", "ACTOR"}, rows)
}

// FormatCampaignList renders root entities as a table.
func FormatCampaignList(campaigns []*domain.Entity) string {
	if len(campaigns) == 0 {
		return Dim("No campaigns yet.") + "\n"
	}
	rows := make([][]string, 0, len(campaigns))
	for _, c := range campaigns {
		rows = append(rows, []string{
			TruncID(c.ID),
			Bold(c.Name),
			StatePill(c.State),
			FormatBudget(c.BudgetTotal),
			c.Segment,
		})
	}
	return RenderTable([]string{"ID", "NAME", "STATE", "TOTAL", "SEGMENT"}, rows)
}
