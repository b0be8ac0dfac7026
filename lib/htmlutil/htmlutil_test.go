package htmlutil

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
)

func parseForm(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return doc.Find("form")
}

func TestScrapeForm(t *testing.T) {
	testCases := []struct {
		name     string
		html     string
		expected url.Values
	}{
		{
			name: "hidden and text inputs",
			html: `<form>
				<input type="hidden" name="csrf_token" value="abc123">
				<input type="text" name="price" value="14.99">
				<input type="submit" name="save" value="Save">
			</form>`,
			expected: url.Values{
				"csrf_token": {"abc123"},
				"price":      {"14.99"},
			},
		},
		{
			name: "checkbox checked state",
			html: `<form>
				<input type="checkbox" name="active" checked>
				<input type="checkbox" name="auto_delivery">
			</form>`,
			expected: url.Values{
				"active": {"on"},
			},
		},
		{
			name: "select selected option",
			html: `<form>
				<select name="node_id">
					<option value="1">One</option>
					<option value="2" selected>Two</option>
				</select>
				<select name="server_id">
					<option value="10">Ten</option>
					<option value="20">Twenty</option>
				</select>
			</form>`,
			expected: url.Values{
				"node_id":   {"2"},
				"server_id": {"10"},
			},
		},
		{
			name: "textarea content",
			html: `<form>
				<textarea name="secrets">KEY-1
KEY-2</textarea>
				<input name="unnamed-skipped" type="text">
			</form>`,
			expected: url.Values{
				"secrets":         {"KEY-1\nKEY-2"},
				"unnamed-skipped": {""},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ScrapeForm(parseForm(t, tc.html))
			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Fatalf("field mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("  Подождите \n\t 2   часа  ")
	if got != "Подождите 2 часа" {
		t.Fatalf("got %q", got)
	}
}
