package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/alexanderramin/rollup/internal/service"
)

// resolveEntityID resolves a full id or a unique id prefix, as printed by
// the tree and list views, to the full id.
func resolveEntityID(ctx context.Context, app *App, input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("entity ID is required")
	}

	// 1. Exact id
	if ent, err := app.Engine.Get(ctx, input); err == nil {
		return ent.ID, nil
	} else if !domain.IsNotFound(err) {
		return "", err
	}

	// 2. Prefix match across every campaign tree
	campaigns, err := app.Engine.Campaigns(ctx)
	if err != nil {
		return "", err
	}
	prefix := strings.ToLower(input)
	var matches []string
	for _, c := range campaigns {
		tree, err := app.Engine.Tree(ctx, c.ID)
		if err != nil {
			return "", err
		}
		collectPrefix(tree, prefix, &matches)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("entity not found: %q", input)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("entity ID prefix %q is ambiguous (%d matches)", input, len(matches))
	}
}

func collectPrefix(n *service.TreeNode, prefix string, out *[]string) {
	if strings.HasPrefix(n.Entity.ID, prefix) {
		*out = append(*out, n.Entity.ID)
	}
	for _, ch := range n.Children {
		collectPrefix(ch, prefix, out)
	}
}

func resolveArgs(ctx context.Context, app *App, inputs ...string) ([]string, error) {
	ids := make([]string, len(inputs))
	for i, in := range inputs {
		id, err := resolveEntityID(ctx, app, in)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
