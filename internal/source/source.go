// Package source fetches proxy candidate lists. A candidate is an opaque
// host:port string; dead entries are expected and get filtered later by
// the validator, not here.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultArchiveURL is the dated proxy-archive API walked backwards from
// yesterday until a day yields a usable list.
const DefaultArchiveURL = "https://api.checkerproxy.net/v1/landing/archive"

const (
	fetchTimeout = 10 * time.Second
	// archive days with fewer entries are considered too thin to seed from
	archiveMinimum = 100
)

// FromURL downloads a plain-text proxy list: one host:port per line,
// blank lines and # comments skipped.
func FromURL(ctx context.Context, client *http.Client, rawURL string) ([]string, error) {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching proxy list: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching proxy list: status %d", resp.StatusCode)
	}
	return parseLines(resp.Body)
}

// FromFile loads a proxy list from a local file, same format as FromURL.
func FromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening proxy file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return parseLines(f)
}

// FromArchive walks the dated archive API back from yesterday up to days
// days and returns the first day holding more than a minimum number of
// proxies. Days that fail to fetch or parse are skipped, not fatal.
func FromArchive(ctx context.Context, client *http.Client, baseURL string, days int) ([]string, error) {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	if baseURL == "" {
		baseURL = DefaultArchiveURL
	}

	day := time.Now()
	for range days {
		day = day.AddDate(0, 0, -1)
		u := fmt.Sprintf("%s/%s", strings.TrimRight(baseURL, "/"), day.Format("2006-01-02"))

		proxies, err := archiveDay(ctx, client, u)
		if err != nil {
			slog.DebugContext(ctx, "archive day skipped", "url", u, "error", err)
			continue
		}
		if len(proxies) <= archiveMinimum {
			slog.DebugContext(ctx, "archive day too thin", "url", u, "count", len(proxies))
			continue
		}
		return proxies, nil
	}
	return nil, fmt.Errorf("no archive day with more than %d proxies in the last %d days", archiveMinimum, days)
}

func archiveDay(ctx context.Context, client *http.Client, u string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	// proxyList is either a plain array or an object keyed by index
	var payload struct {
		Data struct {
			ProxyList json.RawMessage `json:"proxyList"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	var list []string
	if err := json.Unmarshal(payload.Data.ProxyList, &list); err == nil {
		return list, nil
	}
	var keyed map[string]string
	if err := json.Unmarshal(payload.Data.ProxyList, &keyed); err != nil {
		return nil, fmt.Errorf("unexpected proxyList shape: %w", err)
	}
	list = make([]string, 0, len(keyed))
	for _, p := range keyed {
		if p != "" {
			list = append(list, p)
		}
	}
	return list, nil
}

// Cap randomly subsamples candidates down to limit. Order is shuffled
// only when truncation happens; small lists pass through untouched.
func Cap(candidates []string, limit int) []string {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	shuffled := make([]string, len(candidates))
	copy(shuffled, candidates)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:limit]
}

func parseLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading proxy list: %w", err)
	}
	return out, nil
}
