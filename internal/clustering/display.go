package clustering

import (
	"fmt"
	"strings"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

const sampleItemCount = 3

// FormatGroupSummary returns a human-readable summary of detected groups.
// Shows mood, item count, runtime and the first 3 sample items for each group.
// Outliers are summarized by count only.
func FormatGroupSummary(groups []Group, outliers []ranking.Item) string {
	var sb strings.Builder

	totalItems := len(outliers)
	for _, g := range groups {
		totalItems += len(g.Items)
	}

	if len(groups) == 0 {
		sb.WriteString(fmt.Sprintf("No groups found from %d items", totalItems))
		if len(outliers) > 0 {
			sb.WriteString(fmt.Sprintf(" (%d outliers skipped)", len(outliers)))
		}
		sb.WriteString("\n")
		return sb.String()
	}

	groupWord := "group"
	if len(groups) > 1 {
		groupWord = "groups"
	}

	sb.WriteString(fmt.Sprintf("Found %d %s from %d items", len(groups), groupWord, totalItems))
	if len(outliers) > 0 {
		sb.WriteString(fmt.Sprintf(" (%d outliers skipped)", len(outliers)))
	}
	sb.WriteString("\n")

	for i, g := range groups {
		sb.WriteString("\n")
		sb.WriteString(formatGroup(i+1, g))
	}

	return sb.String()
}

// formatGroup formats a single group with its sample items.
func formatGroup(num int, g Group) string {
	var sb strings.Builder

	itemWord := "item"
	if len(g.Items) > 1 {
		itemWord = "items"
	}

	sb.WriteString(fmt.Sprintf("Group %d: %s (%d %s, %s)\n",
		num, g.Name, len(g.Items), itemWord, g.Duration()))

	sampleCount := min(sampleItemCount, len(g.Items))
	for i := 0; i < sampleCount; i++ {
		item := g.Items[i]
		if item.Artist != "" {
			sb.WriteString(fmt.Sprintf("  • \"%s\" - %s\n", item.Name, item.Artist))
		} else {
			sb.WriteString(fmt.Sprintf("  • \"%s\" (%s)\n", item.Name, item.Type))
		}
	}

	if remaining := len(g.Items) - sampleItemCount; remaining > 0 {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", remaining))
	}

	return sb.String()
}
