package market

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"lotkeeper/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("scrapers/market")

const DefaultBaseURL = "https://funpay.com"

const sessionCookie = "golden_key"

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Client owns one authenticated session against the marketplace. One
// instance per automation activation; discard whenever the golden key
// changes.
type Client struct {
	BaseURL *url.URL
	Http    *resty.Client

	limiter        *rate.Limiter
	preSubmitDelay func(ctx context.Context)
}

type ClientOptions struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// GoldenKey is the session cookie value. Its validity is only ever
	// determined server-side, construction never checks it.
	GoldenKey string
	// MaxRPS caps request rate across all flows of this session
	// (0 = no cap beyond the per-listing delays).
	MaxRPS float64
	// PreSubmitDelay runs between token extraction and the raise
	// submission to mimic human timing. Nil gets a randomized
	// sub-three-second pause; tests override it with a no-op.
	PreSubmitDelay func(ctx context.Context)
}

func defaultPreSubmitDelay(ctx context.Context) {
	millis, err := random.IntRange(800, 2600)
	if err != nil {
		millis = 800
	}
	timer := time.NewTimer(time.Duration(millis) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func NewClient(opts ClientOptions) (*Client, error) {
	rawURL := opts.BaseURL
	if rawURL == "" {
		rawURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(rawURL)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	// the site serves both the bare domain and www; the cookie must
	// ride along on either
	for _, host := range []string{baseURL.Hostname(), "www." + baseURL.Hostname()} {
		variant := *baseURL
		variant.Host = host
		jar.SetCookies(&variant, []*http.Cookie{{
			Name:  sessionCookie,
			Value: opts.GoldenKey,
			Path:  "/",
		}})
	}
	client.SetCookieJar(jar)

	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", defaultUserAgent)
	client.SetHeader("accept-language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/market/http")

	c := &Client{
		BaseURL:        baseURL,
		Http:           client,
		preSubmitDelay: opts.PreSubmitDelay,
	}
	if c.preSubmitDelay == nil {
		c.preSubmitDelay = defaultPreSubmitDelay
	}
	if opts.MaxRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), 1)
	}
	return c, nil
}

type FetchOptions struct {
	// Referer should be the initiating page when following up with a
	// mutating POST; the site checks same-origin conventions.
	Referer string
	Method  string
	Form    url.Values
}

type Page struct {
	HTML       string
	FinalURL   string
	StatusCode int
}

// FetchPage performs one request and decodes the body to UTF-8. It
// returns ErrNotFound for 404, ErrAuth when the server bounced us to
// the login page, *HTTPError for other non-2xx statuses and
// *NetworkError for transport failures.
func (c *Client) FetchPage(ctx context.Context, path string, opts FetchOptions) (Page, error) {
	if c.limiter != nil {
		err := c.limiter.Wait(ctx)
		if err != nil {
			return Page{}, &NetworkError{Err: err}
		}
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	req := c.Http.R().SetContext(ctx)
	if opts.Referer != "" {
		req.SetHeader("referer", opts.Referer)
	}
	if len(opts.Form) > 0 {
		req.SetFormDataFromValues(opts.Form)
	}

	res, err := req.Execute(method, path)
	if err != nil {
		return Page{}, &NetworkError{Err: err}
	}

	finalURL := res.Request.URL
	if raw := res.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}
	if strings.Contains(finalURL, "/account/login") {
		return Page{}, ErrAuth
	}

	switch {
	case res.StatusCode() == http.StatusNotFound:
		return Page{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	case res.StatusCode() < 200 || res.StatusCode() >= 300:
		return Page{}, &HTTPError{StatusCode: res.StatusCode()}
	}

	html, err := decodeBody(res.Body(), res.Header().Get("content-type"))
	if err != nil {
		return Page{}, fmt.Errorf("decode response body: %w", err)
	}

	return Page{
		HTML:       html,
		FinalURL:   finalURL,
		StatusCode: res.StatusCode(),
	}, nil
}

// decodeBody decodes raw bytes using the header-declared charset,
// defaulting to UTF-8. The marketplace mixes legacy encodings on some
// pages, so the bytes are decoded explicitly instead of trusting
// whatever the HTTP library guessed.
func decodeBody(body []byte, contentType string) (string, error) {
	label := ""
	if contentType != "" {
		_, params, err := mime.ParseMediaType(contentType)
		if err == nil {
			label = params["charset"]
		}
	}
	if label == "" || strings.EqualFold(label, "utf-8") {
		return string(body), nil
	}

	reader, err := charset.NewReaderLabel(label, bytes.NewReader(body))
	if err != nil {
		// unknown label, treat as utf-8 rather than dropping the page
		return string(body), nil
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
