package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"lotkeeper/lib/durationtext"

	"go.opentelemetry.io/otel/codes"
)

const raisePath = "/lots/raise"

var successKeywords = []string{"подняты", "raised"}

type raiseResponse struct {
	Msg   string `json:"msg"`
	Error int    `json:"error"`
}

// Bump refreshes the sort-order freshness of every listing in the
// given category. One attempt; retries only happen via the next
// scheduled sweep.
func (c *Client) Bump(ctx context.Context, nodeID string) Outcome {
	ctx, span := tracer.Start(ctx, "client:Bump")
	defer span.End()

	tradePath := fmt.Sprintf("/lots/%s/trade", nodeID)
	page, err := c.FetchPage(ctx, tradePath, FetchOptions{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch trade page")
		return FailureFromErr(err)
	}

	info := ExtractLotInfo(page.HTML)
	if info.Cooldown > 0 {
		return MustWait(info.Cooldown, "server asked to wait before raising")
	}
	if info.GameID == "" {
		// no raise affordance on the page: delisted category, wrong
		// section, or a layout change. distinct from network/auth
		// failures on purpose.
		span.SetStatus(codes.Error, "raise button not found")
		return Failure("button not found")
	}

	if c.preSubmitDelay != nil {
		c.preSubmitDelay(ctx)
	}

	form := url.Values{}
	form.Set("game_id", info.GameID)
	form.Set("node_id", nodeID)
	if info.CSRFToken != "" {
		form.Set("csrf_token", info.CSRFToken)
	}

	req := c.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		SetHeader("referer", page.FinalURL).
		SetHeader("origin", c.BaseURL.String()).
		SetHeader("x-requested-with", "XMLHttpRequest")
	if info.CSRFToken != "" {
		req.SetHeader("x-csrf-token", info.CSRFToken)
	}

	res, err := req.Post(raisePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "raise request failed")
		return Failure((&NetworkError{Err: err}).Error())
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return Failure((&HTTPError{StatusCode: res.StatusCode()}).Error())
	}

	return classifyRaiseBody(res.Body())
}

func classifyRaiseBody(body []byte) Outcome {
	var parsed raiseResponse
	err := json.Unmarshal(body, &parsed)
	if err != nil {
		// not json after all, fall back to keyword sniffing on the
		// raw body
		lowered := strings.ToLower(string(body))
		for _, keyword := range successKeywords {
			if strings.Contains(lowered, keyword) {
				return Success(strings.TrimSpace(string(body)))
			}
		}
		return Failure(strings.TrimSpace(string(body)))
	}

	if wait := waitHintFromMessage(parsed.Msg); wait > 0 {
		return MustWait(wait, parsed.Msg)
	}
	if parsed.Error != 0 {
		return Failure(parsed.Msg)
	}
	if parsed.Msg == "" {
		return Success("raised")
	}
	return Success(parsed.Msg)
}

func waitHintFromMessage(msg string) time.Duration {
	lowered := strings.ToLower(msg)
	for _, marker := range waitMarkers {
		if strings.Contains(lowered, marker) {
			d := durationtext.Parse(msg)
			if d != durationtext.Sentinel {
				return d
			}
		}
	}
	return 0
}
