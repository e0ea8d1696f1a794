package platform

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/driftlock/drover/internal/job"
	"github.com/driftlock/drover/internal/model"
)

// HTTPAPI is the generic HTTP adapter. All target knowledge lives in the
// configured URL templates and form params; {id} is substituted with the
// job identifier everywhere it appears. Info and progress reads go out
// directly, actions are routed through the supplied proxy.
type HTTPAPI struct {
	infoURL       string
	progressURL   string
	progressField string
	actionURL     string
	method        string
	params        map[string]string
	headers       map[string]string
	timeout       time.Duration
	client        *http.Client
}

func NewHTTPAPI(cfg model.Platform, timeout time.Duration) (*HTTPAPI, error) {
	if cfg.ProgressURL == nil || *cfg.ProgressURL == "" {
		return nil, fmt.Errorf("httpapi platform requires progress_url")
	}
	if cfg.ActionURL == nil || *cfg.ActionURL == "" {
		return nil, fmt.Errorf("httpapi platform requires action_url")
	}

	a := &HTTPAPI{
		progressURL: *cfg.ProgressURL,
		actionURL:   *cfg.ActionURL,
		method:      http.MethodPost,
		params:      cfg.Params,
		headers:     cfg.Headers,
		timeout:     timeout,
		client:      &http.Client{Timeout: timeout},
	}
	if cfg.InfoURL != nil {
		a.infoURL = *cfg.InfoURL
	}
	if cfg.ProgressField != nil {
		a.progressField = *cfg.ProgressField
	}
	if cfg.Method != nil {
		a.method = *cfg.Method
	}
	return a, nil
}

// Info fetches the configured info URL and keeps its JSON body as the
// opaque job context. With no info URL configured the context is empty.
func (a *HTTPAPI) Info(ctx context.Context, id string) (job.Info, error) {
	if a.infoURL == "" {
		return job.Info{}, nil
	}

	body, err := a.get(ctx, expand(a.infoURL, id))
	if err != nil {
		return nil, err
	}

	var info job.Info
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decoding info response: %w", err)
	}
	return info, nil
}

// Progress reads the progress metric: either a named field inside a JSON
// response (dotted path supported) or a plain integer body.
func (a *HTTPAPI) Progress(ctx context.Context, id string) (int64, error) {
	body, err := a.get(ctx, expand(a.progressURL, id))
	if err != nil {
		return 0, err
	}

	if a.progressField == "" {
		n, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing progress body: %w", err)
		}
		return n, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, fmt.Errorf("decoding progress response: %w", err)
	}
	return digNumber(doc, a.progressField)
}

// Act issues one action through proxy: the configured method against the
// action URL with the configured form params, everything {id}-expanded.
// Transport errors and non-2xx statuses both fail the attempt.
func (a *HTTPAPI) Act(ctx context.Context, id string, info job.Info, proxy string) error {
	proxyURL, err := url.Parse("http://" + proxy)
	if err != nil {
		return err
	}
	client := &http.Client{
		Timeout: a.timeout,
		Transport: &http.Transport{
			Proxy:             http.ProxyURL(proxyURL),
			DisableKeepAlives: true,
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
		},
	}
	defer client.CloseIdleConnections()

	form := url.Values{}
	for k, v := range a.params {
		form.Set(k, expand(v, id))
	}

	target := expand(a.actionURL, id)
	var req *http.Request
	if a.method == http.MethodGet {
		if enc := form.Encode(); enc != "" {
			target += "?" + enc
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return err
	}
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("action rejected: status %d", resp.StatusCode)
	}
	return nil
}

func (a *HTTPAPI) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

func expand(tmpl, id string) string {
	return strings.ReplaceAll(tmpl, "{id}", id)
}

// digNumber walks a dotted path like "data.stat.count" through nested
// JSON objects down to a number.
func digNumber(doc map[string]any, path string) (int64, error) {
	parts := strings.Split(path, ".")
	var cur any = doc
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("progress field %s: %q is not an object", path, p)
		}
		cur, ok = m[p]
		if !ok {
			return 0, fmt.Errorf("progress field %s: %q missing", path, p)
		}
	}
	switch n := cur.(type) {
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("progress field %s is not a number", path)
	}
}
