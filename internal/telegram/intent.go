package telegram

import (
	"regexp"
	"strconv"
	"strings"

	"eggbot/internal/service"
)

var quantityPattern = regexp.MustCompile(`\d+`)

// ParseText maps a chat message to an intent. Purchase requests carry the first
// number in the text as the quantity, defaulting to 1.
func ParseText(text string) (service.Intent, int64, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return "", 0, false
	}

	switch {
	case strings.HasPrefix(t, "/start"):
		return service.IntentStart, 0, true
	case strings.Contains(t, "купить"), strings.Contains(t, "buy"):
		return service.IntentRequestPurchase, parseQuantity(t), true
	case strings.HasPrefix(t, "/collection"),
		strings.Contains(t, "коллекц"),
		strings.Contains(t, "collection"):
		return service.IntentInspect, 0, true
	case strings.HasPrefix(t, "/open"),
		strings.Contains(t, "открыть"),
		strings.Contains(t, "open"),
		strings.Contains(t, "🥚"):
		return service.IntentOpenEgg, 0, true
	}
	return "", 0, false
}

func parseQuantity(t string) int64 {
	m := quantityPattern.FindString(t)
	if m == "" {
		return 1
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		// too many digits; let validation reject it
		return -1
	}
	return n
}
