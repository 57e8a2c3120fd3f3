package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pagekeep/pagekeep/internal/audit"
)

// auditHistory lists database-sink audit entries matching the filters,
// newest first, rendered for terminal output.
func auditHistory(ctx context.Context, trail *audit.Trail, action, entity string, limit int) (string, error) {
	entries, err := trail.List(ctx, audit.Filter{Action: action, EntityType: entity, Limit: limit})
	if err != nil {
		return "", err
	}
	return formatAuditEntries(entries), nil
}

func formatAuditEntries(entries []audit.Entry) string {
	if len(entries) == 0 {
		return "(none)\n"
	}
	var b strings.Builder
	for _, e := range entries {
		actor := "system"
		if e.UserID != nil {
			actor = fmt.Sprintf("user:%d", *e.UserID)
		}
		fmt.Fprintf(&b, "%-26s %-20s %-10s %s", e.CreatedAt, e.Action, e.EntityType, actor)
		if len(e.Details) > 0 {
			if d, err := json.Marshal(e.Details); err == nil {
				fmt.Fprintf(&b, " %s", d)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
