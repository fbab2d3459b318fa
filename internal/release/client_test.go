package release

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestResolveTagConcrete ensures explicit tags bypass the API entirely.
func TestResolveTagConcrete(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient("owner/repo", time.Second, WithAPIBase(server.URL))

	tag := client.ResolveTag(context.Background(), "v1.2.3")
	require.Equal(t, "v1.2.3", tag)
	require.Zero(t, hits.Load())
}

// TestResolveTagLatest resolves the pseudo-tag through the API.
func TestResolveTagLatest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/owner/repo/releases/latest", r.URL.Path)
		require.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		require.NotEmpty(t, r.Header.Get("User-Agent"))
		require.Equal(t, "2022-11-28", r.Header.Get("X-GitHub-Api-Version"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name": "v9.9.9", "name": "ignored"}`))
	}))
	defer server.Close()

	client := NewClient("owner/repo", time.Second, WithAPIBase(server.URL))

	require.Equal(t, "v9.9.9", client.ResolveTag(context.Background(), "latest"))

	// An empty requested tag means "latest" too.
	require.Equal(t, "v9.9.9", client.ResolveTag(context.Background(), ""))
}

// TestResolveTagFallback keeps "latest" when the API cannot be reached.
func TestResolveTagFallback(t *testing.T) {
	t.Parallel()

	tests := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"not json": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>rate limited</html>"))
		},
		"missing tag": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"name": "release without tag"}`))
		},
	}

	for name, handler := range tests {
		handler := handler

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(handler)
			defer server.Close()

			client := NewClient("owner/repo", time.Second, WithAPIBase(server.URL))
			require.Equal(t, LatestTag, client.ResolveTag(context.Background(), LatestTag))
		})
	}

	// Unreachable endpoint falls back the same way.
	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()

		client := NewClient("owner/repo", 200*time.Millisecond,
			WithAPIBase("http://127.0.0.1:1"))
		require.Equal(t, LatestTag, client.ResolveTag(context.Background(), LatestTag))
	})
}

// TestAssetURL checks both download URL forms.
func TestAssetURL(t *testing.T) {
	t.Parallel()

	client := NewClient("owner/repo", time.Second)

	require.Equal(t,
		"https://github.com/owner/repo/releases/download/v1.0.0/cgp-linux-x86_64.tar.gz",
		client.AssetURL("v1.0.0", "cgp-linux-x86_64.tar.gz"))

	require.Equal(t,
		"https://github.com/owner/repo/releases/latest/download/cgp-linux-x86_64.tar.gz",
		client.AssetURL(LatestTag, "cgp-linux-x86_64.tar.gz"))
}

// TestVersionFromTag strips the conventional prefix.
func TestVersionFromTag(t *testing.T) {
	t.Parallel()

	require.Equal(t, "1.2.3", VersionFromTag("v1.2.3"))
	require.Equal(t, "1.2.3", VersionFromTag(" 1.2.3 "))
	require.Equal(t, "", VersionFromTag(""))
}

// TestIsNewer covers semantic and string comparison paths.
func TestIsNewer(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		remote   string
		local    string
		expected bool
	}{
		"patch bump":            {remote: "v1.2.3", local: "1.2.2", expected: true},
		"same version":          {remote: "1.2.3", local: "v1.2.3", expected: false},
		"remote older":          {remote: "0.9.0", local: "1.0.0", expected: false},
		"minor bump":            {remote: "1.3.0", local: "1.2.9", expected: true},
		"no remote":             {remote: "", local: "1.0.0", expected: false},
		"no local":              {remote: "1.0.0", local: "", expected: true},
		"unparseable differ":    {remote: "nightly-2", local: "nightly-1", expected: true},
		"unparseable identical": {remote: "nightly-1", local: "nightly-1", expected: false},
	}

	for name, test := range tests {
		test := test

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, test.expected, IsNewer(test.remote, test.local))
		})
	}
}
