package analysis

import (
	"fmt"
	"strings"
)

const (
	parseFailureNotice = "The analysis completed but the response format was unexpected. Here's what was found:"
	emptyTitle         = "No food items detected"
	emptyDefaultHint   = "Try uploading a clearer image with visible food items."
)

// Format renders r as plain text for chat and terminal output.
func Format(r Result) string {
	var b strings.Builder
	switch v := r.(type) {
	case ItemizedResult:
		for _, it := range v.Items {
			fmt.Fprintf(&b, "🍽️ %s\n", orDefault(it.Name, "Unknown food"))
			fmt.Fprintf(&b, "   📏 Portion: %s\n", orDefault(it.Portion, "Not specified"))
			fmt.Fprintf(&b, "   🔥 Calories: %s kcal\n", orDefault(it.CaloriesRange, "N/A"))
		}
		if v.TotalCaloriesRange != "" {
			fmt.Fprintf(&b, "\n🔥 Total Calories: %s kcal\n", v.TotalCaloriesRange)
		}
		if v.Confidence != "" {
			b.WriteString(confidenceLabel(v.Confidence))
			b.WriteByte('\n')
		}
	case ParseFailure:
		b.WriteString("⚠️ ")
		b.WriteString(parseFailureNotice)
		b.WriteString("\n\n")
		b.WriteString(v.RawText)
		b.WriteByte('\n')
	case EmptyResult:
		b.WriteString("🔍 ")
		b.WriteString(emptyTitle)
		b.WriteByte('\n')
		b.WriteString(orDefault(v.Hint, emptyDefaultHint))
		b.WriteByte('\n')
	}
	return b.String()
}

func confidenceLabel(c string) string {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "high":
		return "✅ High Confidence"
	case "medium":
		return "⚡ Medium Confidence"
	case "low":
		return "⚠️ Low Confidence"
	default:
		return "Confidence: " + c
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
