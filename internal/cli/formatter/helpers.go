package formatter

import (
	"strconv"
	"strings"

	"github.com/alexanderramin/rollup/internal/domain"
)

// StatePill returns a colored state indicator such as "● active".
func StatePill(s domain.State) string {
	var symbol string
	switch s {
	case domain.StateCompleted, domain.StateClosedComplete:
		symbol = "✔"
	case domain.StateCanceled, domain.StateRejected, domain.StateClosedIncomplete:
		symbol = "✖"
	case domain.StateOnHold, domain.StateArchived:
		symbol = "‖"
	case domain.StateClosedSkipped:
		symbol = "⊘"
	case domain.StateActive, domain.StateWorkInProgress:
		symbol = "●"
	default:
		symbol = "○"
	}
	return StateStyle(s).Render(symbol + " " + string(s))
}

// TruncID returns the first 8 characters of an ID, dimmed.
func TruncID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return StyleDim.Render(id)
}

// FormatBudget renders minor units with thousands separators: 11000 → "11,000".
func FormatBudget(v int64) string {
	neg := v < 0
	digits := strconv.FormatInt(v, 10)
	if neg {
		digits = digits[1:]
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatOptionalBudget renders "--" for an unset budget.
func FormatOptionalBudget(v *int64) string {
	if v == nil {
		return "--"
	}
	return FormatBudget(*v)
}
