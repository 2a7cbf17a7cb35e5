package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/alexanderramin/rollup/internal/service"
	"github.com/charmbracelet/lipgloss"
)

// TreeItem represents a single node in a tree display.
type TreeItem struct {
	Title  string
	Ref    string // short id shown before the title; "" hides it
	Level  int
	IsLast bool
	Status domain.State
	Detail string
}

const (
	treeBranch = "├─ "
	treeCorner = "└─ "
	treePipe   = "│  "
	treeBlank  = "   "
)

// RenderTree renders a list of TreeItems as an indented tree using
// box-drawing characters for connectors. Completed items get a green ✔
// prefix, working items an amber ▶ prefix, and detail badges are
// right-aligned.
func RenderTree(items []TreeItem) string {
	if len(items) == 0 {
		return ""
	}

	type lineInfo struct {
		content string // prefix + statusPrefix + title (styled)
		badge   string // styled badge or ""
	}

	lines := make([]lineInfo, len(items))
	maxContentWidth := 0

	// open[l] is true while the ancestor at level l still has siblings below.
	open := map[int]bool{}

	// Pass 1: build each line's content and track max visible width.
	for idx, item := range items {
		var prefix string
		if item.Level > 0 {
			for i := 1; i < item.Level; i++ {
				if open[i] {
					prefix += treePipe
				} else {
					prefix += treeBlank
				}
			}
			if item.IsLast {
				prefix += treeCorner
			} else {
				prefix += treeBranch
			}
			open[item.Level] = !item.IsLast
		}

		title := item.Title
		if item.Ref != "" {
			title = StyleDim.Render(item.Ref+" ") + title
		}
		statusPrefix := ""

		switch item.Status {
		case domain.StateCompleted, domain.StateClosedComplete:
			statusPrefix = StyleGreen.Render("✔ ")
			title = Dim(title)
		case domain.StateActive, domain.StateWorkInProgress:
			statusPrefix = StyleYellowBold.Render("▶ ")
			title = StyleYellowBold.Render(title)
		}

		content := prefix + statusPrefix + title
		lines[idx].content = content

		if item.Detail != "" {
			lines[idx].badge = StyleBlue.Render(fmt.Sprintf("[ %s ]", item.Detail))
		}

		if w := lipgloss.Width(content); w > maxContentWidth {
			maxContentWidth = w
		}
	}

	// Pass 2: render with right-aligned badges.
	var b strings.Builder
	for _, li := range lines {
		if li.badge != "" {
			pad := maxContentWidth - lipgloss.Width(li.content)
			if pad < 0 {
				pad = 0
			}
			b.WriteString(li.content + strings.Repeat(" ", pad) + "  " + li.badge + "\n")
		} else {
			b.WriteString(li.content + "\n")
		}
	}

	return b.String()
}

// TreeItems flattens a loaded subtree depth first.
func TreeItems(root *service.TreeNode) []TreeItem {
	var items []TreeItem
	var walk func(n *service.TreeNode, level int, last bool)
	walk = func(n *service.TreeNode, level int, last bool) {
		items = append(items, TreeItem{
			Title:  n.Entity.Name,
			Ref:    n.Entity.DisplayID(),
			Level:  level,
			IsLast: last,
			Status: n.Entity.State,
			Detail: treeDetail(n.Entity),
		})
		for i, ch := range n.Children {
			walk(ch, level+1, i == len(n.Children)-1)
		}
	}
	walk(root, 0, true)
	return items
}

func treeDetail(e *domain.Entity) string {
	parts := []string{string(e.State)}
	if e.BudgetOwn != nil {
		parts = append(parts, "own "+FormatBudget(*e.BudgetOwn))
	}
	if _, ok := e.Kind.ChildKind(); ok {
		parts = append(parts, "total "+FormatBudget(e.BudgetTotal))
	}
	return strings.Join(parts, " · ")
}

// FormatTree renders a loaded subtree.
func FormatTree(root *service.TreeNode) string {
	return RenderTree(TreeItems(root))
}
