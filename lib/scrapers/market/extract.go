package market

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"
	"time"

	"lotkeeper/lib/durationtext"
	"lotkeeper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// LotInfo holds whatever could be recovered from a category trade
// page. Any field may be empty: the page layout is controlled by a
// third party and varies by category and page version, so extraction
// degrades to zero values instead of failing.
type LotInfo struct {
	CSRFToken string
	GameID    string
	// Cooldown is non-zero when the page itself carries a rate-limit
	// warning ("please wait ...").
	Cooldown time.Duration
}

// ExtractLotInfo runs each field's ordered fallback chain over the
// page; the first pattern that matches wins, later ones are not
// consulted. It never fails.
func ExtractLotInfo(pageHTML string) LotInfo {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return LotInfo{}
	}

	info := LotInfo{}

	info.CSRFToken = csrfFromAppData(pageHTML)
	if info.CSRFToken == "" {
		info.CSRFToken = csrfFromHiddenInput(doc)
	}

	info.GameID = gameIDFromRaiseButton(doc)
	if info.GameID == "" {
		info.GameID = gameIDFromDataAttr(doc)
	}
	if info.GameID == "" {
		info.GameID = gameIDFromAppData(pageHTML)
	}

	info.Cooldown = cooldownFromAlert(doc, pageHTML)

	return info
}

var appDataRegex = regexp.MustCompile(`data-app-data="([^"]+)"`)

func appDataBlob(pageHTML string) map[string]json.RawMessage {
	groups := appDataRegex.FindStringSubmatch(pageHTML)
	if len(groups) < 2 {
		return nil
	}

	var blob map[string]json.RawMessage
	err := json.Unmarshal([]byte(html.UnescapeString(groups[1])), &blob)
	if err != nil {
		return nil
	}
	return blob
}

func blobString(blob map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := blob[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
		// ids are sometimes numeric in the blob
		var n json.Number
		if json.Unmarshal(raw, &n) == nil && n.String() != "" {
			return n.String()
		}
	}
	return ""
}

func csrfFromAppData(pageHTML string) string {
	return blobString(appDataBlob(pageHTML), "csrf-token", "csrfToken")
}

func csrfFromHiddenInput(doc *goquery.Document) string {
	return doc.Find(`input[name="csrf_token"]`).AttrOr("value", "")
}

func gameIDFromRaiseButton(doc *goquery.Document) string {
	return doc.Find("button.js-lot-raise").AttrOr("data-game", "")
}

func gameIDFromDataAttr(doc *goquery.Document) string {
	return doc.Find("[data-game-id]").AttrOr("data-game-id", "")
}

func gameIDFromAppData(pageHTML string) string {
	return blobString(appDataBlob(pageHTML), "game-id", "gameId")
}

var waitMarkers = []string{"подождите", "please wait"}

// cooldownFromAlert extracts and parses the human-readable wait
// message out of the page's alert box, but only when the body carries
// a known rate-limit marker; alerts are used for plenty of unrelated
// notices.
func cooldownFromAlert(doc *goquery.Document, pageHTML string) time.Duration {
	lowered := strings.ToLower(pageHTML)
	marked := false
	for _, marker := range waitMarkers {
		if strings.Contains(lowered, marker) {
			marked = true
			break
		}
	}
	if !marked {
		return 0
	}

	message := ""
	doc.Find("div.alert.alert-warning, div.alert.alert-info").EachWithBreak(func(_ int, alert *goquery.Selection) bool {
		text := htmlutil.CleanText(alert.Text())
		loweredText := strings.ToLower(text)
		for _, marker := range waitMarkers {
			if strings.Contains(loweredText, marker) {
				message = text
				return false
			}
		}
		return true
	})
	if message == "" {
		return 0
	}

	d := durationtext.Parse(message)
	if d == durationtext.Sentinel {
		// marker present but no parseable number: no usable hint,
		// let the attempt classify as a plain failure instead of
		// scheduling a year out
		return 0
	}
	return d
}
