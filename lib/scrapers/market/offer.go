package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"lotkeeper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

const offerSavePath = "/lots/offerSave"

// ListingRef identifies one sellable unit. The offer id must be
// re-discovered per sweep; it is never assumed stable across runs.
type ListingRef struct {
	NodeID  string
	OfferID string
}

func (r ListingRef) String() string {
	return fmt.Sprintf("%s/%s", r.NodeID, r.OfferID)
}

// fetchOfferForm re-fetches the edit form right before every mutating
// write so overrides are applied to fresh field state, never stale.
func (c *Client) fetchOfferForm(ctx context.Context, ref ListingRef) (url.Values, string, error) {
	editPath := fmt.Sprintf("/lots/offerEdit?node=%s&offer=%s",
		url.QueryEscape(ref.NodeID), url.QueryEscape(ref.OfferID))

	page, err := c.FetchPage(ctx, editPath, FetchOptions{})
	if err != nil {
		return nil, "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, "", fmt.Errorf("parse edit page: %w", err)
	}

	form := doc.Find("form.form-offer-editor")
	if form.Length() == 0 {
		form = doc.Find("form")
	}
	fields := htmlutil.ScrapeForm(form)
	if len(fields) == 0 {
		return nil, "", fmt.Errorf("edit form not found on %s", editPath)
	}

	return fields, page.FinalURL, nil
}

// submitOffer posts a reconstructed field set back to the save
// endpoint and classifies the response.
func (c *Client) submitOffer(ctx context.Context, fields url.Values, referer string) Outcome {
	page, err := c.FetchPage(ctx, offerSavePath, FetchOptions{
		Method:  http.MethodPost,
		Form:    fields,
		Referer: referer,
	})
	if err != nil {
		return FailureFromErr(err)
	}

	lowered := strings.ToLower(page.HTML)
	for _, marker := range waitMarkers {
		if strings.Contains(lowered, marker) {
			doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
			if docErr == nil {
				if wait := cooldownFromAlert(doc, page.HTML); wait > 0 {
					return MustWait(wait, "server asked to wait")
				}
			}
		}
	}
	if strings.Contains(lowered, "error") || strings.Contains(lowered, "ошибка") {
		return Failure(serverMessage(page.HTML))
	}

	return Success("saved")
}

// serverMessage digs the human-readable rejection out of the response
// so it can be passed through to the log verbatim.
func serverMessage(pageHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err == nil {
		msg := htmlutil.CleanText(doc.Find("div.alert.alert-danger").First().Text())
		if msg != "" {
			return msg
		}
		msg = htmlutil.CleanText(doc.Find("div.alert").First().Text())
		if msg != "" {
			return msg
		}
	}
	return "server rejected the submission"
}

// SetActive toggles a listing without touching anything else: the full
// scraped field set is passed through, only the active flag changes.
// The server treats the field's absence as "off", so the flag is
// deleted rather than submitted as false.
func (c *Client) SetActive(ctx context.Context, ref ListingRef, active bool) Outcome {
	ctx, span := tracer.Start(ctx, "client:SetActive")
	defer span.End()

	fields, referer, err := c.fetchOfferForm(ctx, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch edit form")
		return FailureFromErr(err)
	}

	if active {
		fields.Set("active", "on")
	} else {
		fields.Del("active")
	}

	return c.submitOffer(ctx, fields, referer)
}

type RestockRequest struct {
	// UnitText is one unit of deliverable stock; it is repeated
	// Quantity times, one unit per line.
	UnitText string
	Quantity int
	// AutoDelivery and Activate follow the same absence-means-off
	// contract as the active flag.
	AutoDelivery bool
	Activate     bool
}

// Restock replaces a listing's deliverable inventory and quantity.
func (c *Client) Restock(ctx context.Context, ref ListingRef, req RestockRequest) Outcome {
	ctx, span := tracer.Start(ctx, "client:Restock")
	defer span.End()

	if req.Quantity <= 0 {
		return Failure("restock quantity must be positive")
	}

	fields, referer, err := c.fetchOfferForm(ctx, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch edit form")
		return FailureFromErr(err)
	}

	units := make([]string, req.Quantity)
	for i := range units {
		units[i] = req.UnitText
	}
	fields.Set("secrets", strings.Join(units, "\n"))
	fields.Set("amount", strconv.Itoa(req.Quantity))

	if req.AutoDelivery {
		fields.Set("auto_delivery", "on")
	} else {
		fields.Del("auto_delivery")
	}
	if req.Activate {
		fields.Set("active", "on")
	} else {
		fields.Del("active")
	}

	return c.submitOffer(ctx, fields, referer)
}

// Delete removes a listing by resubmitting its form with the deleted
// marker set.
func (c *Client) Delete(ctx context.Context, ref ListingRef) Outcome {
	ctx, span := tracer.Start(ctx, "client:Delete")
	defer span.End()

	fields, referer, err := c.fetchOfferForm(ctx, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch edit form")
		return FailureFromErr(err)
	}

	fields.Set("deleted", "1")

	return c.submitOffer(ctx, fields, referer)
}

// OfferQuantity reads the current stock quantity off a listing's edit
// form. Used by restock runs to decide whether a refill is due.
func (c *Client) OfferQuantity(ctx context.Context, ref ListingRef) (int, error) {
	fields, _, err := c.fetchOfferForm(ctx, ref)
	if err != nil {
		return 0, err
	}
	amount := fields.Get("amount")
	if amount == "" {
		return 0, fmt.Errorf("amount field not found on %s", ref)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("amount field on %s: %w", ref, err)
	}
	return qty, nil
}

// OfferIDs discovers the offer ids currently listed under a category
// by scraping its trade page. Offer ids are only unique within one
// fetch; callers re-discover them every sweep.
func (c *Client) OfferIDs(ctx context.Context, nodeID string) ([]string, error) {
	tradePath := fmt.Sprintf("/lots/%s/trade", nodeID)
	page, err := c.FetchPage(ctx, tradePath, FetchOptions{})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse trade page: %w", err)
	}

	var ids []string
	doc.Find("a.tc-item[href]").Each(func(_ int, item *goquery.Selection) {
		href := item.AttrOr("href", "")
		link, err := url.Parse(href)
		if err != nil {
			return
		}
		id := link.Query().Get("id")
		if id == "" {
			id = link.Query().Get("offer")
		}
		if id != "" {
			ids = append(ids, id)
		}
	})
	return ids, nil
}
