package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText collapses a scraped text node into a single display line.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

// ScrapeForm collects every named field of a form the way a browser
// would serialize it: all inputs (checkboxes and radios only when
// checked), the selected option of each select (first option when none
// is marked selected), and textarea contents. The result is the
// complete name→value set needed to resubmit the form unchanged.
func ScrapeForm(form *goquery.Selection) url.Values {
	fields := url.Values{}

	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		typ, _ := input.Attr("type")
		typ = strings.ToLower(typ)

		if typ == "checkbox" || typ == "radio" {
			if _, checked := input.Attr("checked"); !checked {
				return
			}
			fields.Set(name, input.AttrOr("value", "on"))
			return
		}
		if typ == "submit" || typ == "button" || typ == "image" || typ == "file" {
			return
		}
		fields.Set(name, input.AttrOr("value", ""))
	})

	form.Find("select").Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok || name == "" {
			return
		}
		options := sel.Find("option")
		if options.Length() == 0 {
			fields.Set(name, "")
			return
		}

		value := ""
		found := false
		options.Each(func(_ int, opt *goquery.Selection) {
			if _, selected := opt.Attr("selected"); selected && !found {
				value = optionValue(opt)
				found = true
			}
		})
		if !found {
			value = optionValue(options.First())
		}
		fields.Set(name, value)
	})

	form.Find("textarea").Each(func(_ int, area *goquery.Selection) {
		name, ok := area.Attr("name")
		if !ok || name == "" {
			return
		}
		fields.Set(name, area.Text())
	})

	return fields
}

func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(opt.Text())
}
