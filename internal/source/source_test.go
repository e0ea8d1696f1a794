package source_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftlock/drover/internal/source"
)

func TestFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "proxies.txt")
	content := "1.2.3.4:8080\n\n# comment\n  5.6.7.8:3128  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, err := source.FromFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"1.2.3.4:8080", "5.6.7.8:3128"}, got)
}

func TestFromFileMissing(t *testing.T) {
	t.Parallel()
	_, err := source.FromFile(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestFromURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "# proxy list\n1.2.3.4:8080\n5.6.7.8:3128\n")
	}))
	t.Cleanup(srv.Close)

	got, err := source.FromURL(t.Context(), srv.Client(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, []string{"1.2.3.4:8080", "5.6.7.8:3128"}, got)
}

func TestFromURLBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := source.FromURL(t.Context(), srv.Client(), srv.URL)
	require.Error(t, err)
}

func archivePayload(t *testing.T, list any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"data": map[string]any{"proxyList": list},
	})
	require.NoError(t, err)
	return b
}

func manyProxies(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("10.0.%d.%d:8080", i/256, i%256)
	}
	return out
}

func TestFromArchiveListShape(t *testing.T) {
	t.Parallel()

	proxies := manyProxies(150)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archivePayload(t, proxies))
	}))
	t.Cleanup(srv.Close)

	got, err := source.FromArchive(t.Context(), srv.Client(), srv.URL, 5)
	require.NoError(t, err)
	require.Equal(t, proxies, got)
}

func TestFromArchiveKeyedShape(t *testing.T) {
	t.Parallel()

	keyed := make(map[string]string, 150)
	for i, p := range manyProxies(150) {
		keyed[fmt.Sprint(i)] = p
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archivePayload(t, keyed))
	}))
	t.Cleanup(srv.Close)

	got, err := source.FromArchive(t.Context(), srv.Client(), srv.URL, 5)
	require.NoError(t, err)
	require.Len(t, got, 150)
}

func TestFromArchiveSkipsThinDays(t *testing.T) {
	t.Parallel()

	// walked days all respond, but none carries enough proxies
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archivePayload(t, manyProxies(10)))
	}))
	t.Cleanup(srv.Close)

	_, err := source.FromArchive(t.Context(), srv.Client(), srv.URL, 3)
	require.Error(t, err)
}

func TestCap(t *testing.T) {
	t.Parallel()

	t.Run("under limit passes through", func(t *testing.T) {
		t.Parallel()
		in := []string{"a", "b", "c"}
		require.Equal(t, in, source.Cap(in, 10))
	})

	t.Run("over limit subsamples", func(t *testing.T) {
		t.Parallel()
		in := manyProxies(500)
		got := source.Cap(in, 100)
		require.Len(t, got, 100)
		require.Subset(t, in, got)
	})
}
