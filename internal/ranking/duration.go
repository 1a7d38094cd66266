package ranking

import (
	"fmt"
	"math"
	"strconv"
)

// TicksPerMinute converts catalog runtime ticks (100ns) to minutes.
const TicksPerMinute = 600_000_000

// TotalDuration sums the runtime of items in float minutes.
// Items without a runtime contribute 0.
func TotalDuration(items []Item) float64 {
	var total float64
	for _, item := range items {
		total += item.Minutes()
	}
	return total
}

// FormatDuration renders minutes as "1h 30m", or "45m" below an hour.
//
// The minute remainder is not rounded: 90.5 renders as "1h 30.5m".
// Negative, infinite and NaN inputs render as "0m".
func FormatDuration(minutes float64) string {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes < 0 {
		minutes = 0
	}

	hours := math.Floor(minutes / 60)
	rest := math.Mod(minutes, 60)
	restStr := strconv.FormatFloat(rest, 'f', -1, 64)

	if hours > 0 {
		return fmt.Sprintf("%sh %sm", strconv.FormatFloat(hours, 'f', -1, 64), restStr)
	}
	return restStr + "m"
}
