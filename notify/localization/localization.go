// Package localization supplies the small message catalog used to compose
// push notification text. It is data, not logic, kept as a minimal
// embedded catalog so the scheduler can be exercised end to end without
// an external template service.
package localization

import (
	"fmt"
	"strings"
	"time"
)

// Message is a composed, localized push notification body.
type Message struct {
	Title string
	Body  string
}

type template struct {
	title     string
	body      string
	justNow   string
	agoFormat string
	dayUnit   string
	hourUnit  string
	minUnit   string
}

var catalog = map[string]template{
	"en": {
		title:     "Vault %d activity detected",
		body:      "%s triggered %s. Open the app to review.",
		justNow:   "just now",
		agoFormat: "%s ago",
		dayUnit:   "day",
		hourUnit:  "hour",
		minUnit:   "minute",
	},
	"es": {
		title:     "Actividad detectada en la bóveda %d",
		body:      "%s se activó %s. Abre la app para revisar.",
		justNow:   "ahora mismo",
		agoFormat: "hace %s",
		dayUnit:   "día",
		hourUnit:  "hora",
		minUnit:   "minuto",
	},
}

// normalizeLocale reduces a locale tag to its two-letter prefix, falling
// back to "en" when unknown.
func normalizeLocale(locale string) string {
	if len(locale) >= 2 {
		prefix := strings.ToLower(locale[:2])
		if _, ok := catalog[prefix]; ok {
			return prefix
		}
	}
	return "en"
}

// Compose builds the title and body for a notification. firstAttempt is
// true for the very first delivery attempt, in which case the elapsed-time
// phrase is always the literal "just now" (or its localized equivalent),
// regardless of elapsed wall-clock time.
func Compose(locale string, walletName string, vaultNumber int, firstDetectedAt time.Time, now time.Time, firstAttempt bool) Message {
	tpl := catalog[normalizeLocale(locale)]

	var since string
	if firstAttempt {
		since = tpl.justNow
	} else {
		since = fmt.Sprintf(tpl.agoFormat, humanDuration(tpl, now.Sub(firstDetectedAt)))
	}

	return Message{
		Title: fmt.Sprintf(tpl.title, vaultNumber),
		Body:  fmt.Sprintf(tpl.body, walletName, since),
	}
}

// humanDuration renders a coarse, localized "N unit" duration string.
func humanDuration(tpl template, d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		n := int(d / (24 * time.Hour))
		return pluralize(n, tpl.dayUnit)
	case d >= time.Hour:
		n := int(d / time.Hour)
		return pluralize(n, tpl.hourUnit)
	default:
		n := int(d / time.Minute)
		if n < 1 {
			n = 1
		}
		return pluralize(n, tpl.minUnit)
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
