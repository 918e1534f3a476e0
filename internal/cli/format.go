package cli

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FormatCurrency formats an amount with a currency symbol, thousands
// separators and 2 decimal places: -$1,234.50.
func FormatCurrency(amount float64, symbol string) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")

	result := symbol + groupThousands(parts[0]) + "." + parts[1]
	if negative && strings.Trim(parts[0]+parts[1], "0") != "" {
		result = "-" + result
	}
	return result
}

// groupThousands inserts a comma between every group of 3 digits.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPnL formats P&L with sign.
func FormatPnL(pnl float64, symbol string) string {
	formatted := FormatCurrency(pnl, symbol)
	if pnl > 0 && formatted != FormatCurrency(0, symbol) {
		return "+" + formatted
	}
	return formatted
}

// FormatPercent formats a percentage value already scaled to 0..100.
func FormatPercent(value float64) string {
	return fmt.Sprintf("%.2f%%", value)
}

// FormatPrice formats a price with 2 decimal places.
func FormatPrice(price float64) string {
	return fmt.Sprintf("%.2f", price)
}

// FormatOptional formats an optional number, or "-" when unset.
func FormatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return FormatPrice(*v)
}

// FormatRR formats a reward-to-risk multiple.
func FormatRR(rr float64) string {
	return fmt.Sprintf("%.2fR", rr)
}

// FormatMinutes formats a duration given in minutes.
func FormatMinutes(minutes float64) string {
	d := time.Duration(math.Round(minutes)) * time.Minute
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh %02dm", int(d.Hours()), int(d.Minutes())%60)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// Time layouts accepted by --entry, --exit, --from and --to.
var inputLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses a user-supplied time in loc. Layouts without a zone are
// read as wall-clock time in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC3339)", s)
}
