// Package durationtext parses the human phrases the marketplace uses
// for order ages ("2 часа назад") and raise cooldowns ("Подождите 4
// часа."). Both Russian and English phrasings occur depending on the
// account's locale.
package durationtext

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Sentinel is returned for anything unrecognized. It deliberately
// reads as "very old" so that a phrase we cannot parse biases toward
// exclusion from recency buckets, never toward "just happened".
const Sentinel = 365 * 24 * time.Hour

var numberUnit = regexp.MustCompile(`(\d+)\s*([^\s.,!?]+)`)

var zeroPhrases = []string{"только что", "just now", "moments ago"}
var dayPhrases = []string{"вчера", "yesterday"}

type unitStem struct {
	stems []string
	d     time.Duration
}

// ordered so that more specific stems are tried before shorter ones
// ("мес" before "м", "min" before "m").
var unitStems = []unitStem{
	{stems: []string{"сек", "sec", "s"}, d: time.Second},
	{stems: []string{"мин", "min"}, d: time.Minute},
	{stems: []string{"час", "hour", "h"}, d: time.Hour},
	{stems: []string{"дн", "ден", "day", "d"}, d: 24 * time.Hour},
	{stems: []string{"недел", "week", "w"}, d: 7 * 24 * time.Hour},
	{stems: []string{"мес", "month", "mo"}, d: 30 * 24 * time.Hour},
	{stems: []string{"год", "года", "лет", "year", "y"}, d: 365 * 24 * time.Hour},
}

// Parse extracts the first recognizable "<n> <unit>" pair from text.
func Parse(text string) time.Duration {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return Sentinel
	}

	for _, phrase := range zeroPhrases {
		if strings.Contains(lowered, phrase) {
			return 0
		}
	}
	for _, phrase := range dayPhrases {
		if strings.Contains(lowered, phrase) {
			return 24 * time.Hour
		}
	}

	for _, match := range numberUnit.FindAllStringSubmatch(lowered, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if unit, ok := lookupUnit(match[2]); ok {
			return time.Duration(n) * unit
		}
	}

	return Sentinel
}

func lookupUnit(word string) (time.Duration, bool) {
	for _, u := range unitStems {
		for _, stem := range u.stems {
			if strings.HasPrefix(word, stem) {
				return u.d, true
			}
		}
	}
	return 0, false
}
