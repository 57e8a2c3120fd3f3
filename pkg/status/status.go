package status

import (
	"context"
	"fmt"
	"strings"

	"github.com/pagekeep/pagekeep/internal/migration"
)

// Info aggregates migration status for display: counts, the last applied
// unit, and the full name lists.
type Info struct {
	TotalAvailable int
	TotalApplied   int
	PendingCount   int
	LastApplied    string
	Available      []string
	Applied        []string
	Pending        []string
}

// FromEngine collects status from an initialized engine.
func FromEngine(ctx context.Context, e *migration.Engine) (Info, error) {
	st, err := e.Status(ctx)
	if err != nil {
		return Info{}, err
	}
	return Info{
		TotalAvailable: st.TotalAvailable,
		TotalApplied:   st.TotalApplied,
		PendingCount:   st.PendingCount,
		LastApplied:    st.LastApplied,
		Available:      st.Available,
		Applied:        st.Applied,
		Pending:        st.Pending,
	}, nil
}

// FormatHuman returns a human-friendly multiline string for CLI output.
// verbose=false prints only the counts and last applied name; verbose=true
// appends the applied and pending lists.
func (i Info) FormatHuman(verbose bool) string {
	last := i.LastApplied
	if last == "" {
		last = "(none)"
	}
	base := fmt.Sprintf("available: %d\napplied: %d\npending: %d\nlast: %s\n",
		i.TotalAvailable, i.TotalApplied, i.PendingCount, last)
	if !verbose {
		return base
	}
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("applied units:\n")
	if len(i.Applied) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, name := range i.Applied {
		fmt.Fprintf(&b, "  %s\n", name)
	}
	b.WriteString("pending units:\n")
	if len(i.Pending) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, name := range i.Pending {
		fmt.Fprintf(&b, "  %s\n", name)
	}
	return b.String()
}
