// Package plusapi talks to the cloud orchestration service that can
// run the same automations server-side. JSON over HTTPS with a bearer
// token; the token is supplied at construction from the caller's
// secure storage, it is never baked into the binary.
package plusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lotkeeper/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	http *resty.Client
}

func NewClient(baseURL, accessToken string) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetAuthToken(accessToken)
	client.SetHeader("content-type", "application/json")
	client.SetTimeout(time.Second * 15)

	telemetry.InstrumentResty(client, "plusapi/http")

	return &Client{http: client}
}

type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type AutoBumpStatus struct {
	IsActive      bool     `json:"is_active"`
	NextBump      string   `json:"next_bump"`
	StatusMessage string   `json:"status_message"`
	NodeIDs       []string `json:"node_ids"`
}

type RestockLot struct {
	NodeID     string   `json:"node_id"`
	MinQty     int      `json:"min_qty"`
	AddSecrets []string `json:"add_secrets"`
}

type RestockLotStatus struct {
	NodeID   string `json:"node_id"`
	KeysInDB int    `json:"keys_in_db"`
}

type AutoRestockStatus struct {
	Active    bool               `json:"active"`
	Message   string             `json:"message"`
	Lots      []RestockLotStatus `json:"lots"`
	NextCheck string             `json:"next_check"`
}

func (c *Client) postAck(ctx context.Context, path string, body any) (Ack, error) {
	var ack Ack
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return ack, err
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return ack, fmt.Errorf("%s: HTTP %d", path, res.StatusCode())
	}
	err = json.Unmarshal(res.Body(), &ack)
	if err != nil {
		return ack, fmt.Errorf("decode %s response: %w", path, err)
	}
	return ack, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	res, err := c.http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return err
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return fmt.Errorf("%s: HTTP %d", path, res.StatusCode())
	}
	return json.Unmarshal(res.Body(), out)
}

func (c *Client) SetAutoBump(ctx context.Context, goldenKey string, nodeIDs []string, active bool) (Ack, error) {
	return c.postAck(ctx, "/api/plus/autobump/set", map[string]any{
		"golden_key": goldenKey,
		"node_ids":   nodeIDs,
		"active":     active,
	})
}

func (c *Client) ForceCheck(ctx context.Context) (Ack, error) {
	return c.postAck(ctx, "/api/plus/autobump/force_check", map[string]any{})
}

func (c *Client) AutoBumpStatus(ctx context.Context) (AutoBumpStatus, error) {
	var status AutoBumpStatus
	err := c.getJSON(ctx, "/api/plus/autobump/status", &status)
	return status, err
}

func (c *Client) SetAutoRestock(ctx context.Context, goldenKey string, active bool, lots []RestockLot) (Ack, error) {
	return c.postAck(ctx, "/api/plus/autorestock/set", map[string]any{
		"golden_key": goldenKey,
		"active":     active,
		"lots":       lots,
	})
}

func (c *Client) AutoRestockStatus(ctx context.Context) (AutoRestockStatus, error) {
	var status AutoRestockStatus
	err := c.getJSON(ctx, "/api/plus/autorestock/status", &status)
	return status, err
}
