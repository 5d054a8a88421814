package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const samplePage = `<!doctype html>
<html>
<head><title>Docs</title><style>body { color: red }</style></head>
<body>
  <script>var tracked = true;</script>
  <h1>Changelog</h1>
  <p>Version   2.0 released.</p>
  <ul><li>Added streaming</li><li>Removed legacy API</li></ul>
</body>
</html>`

func TestExtractTextStripsMarkup(t *testing.T) {
	got, err := ExtractText(strings.NewReader(samplePage))
	if err != nil {
		t.Fatalf("ExtractText returned error: %v", err)
	}

	want := []string{"Docs", "Changelog", "Version 2.0 released.", "Added streaming", "Removed legacy API"}
	if diff := cmp.Diff(want, strings.Split(got, "\n")); diff != "" {
		t.Fatalf("unexpected text (-want +got):\n%s", diff)
	}
	if strings.Contains(got, "tracked") || strings.Contains(got, "color") {
		t.Fatalf("script or style leaked into text: %q", got)
	}
}

func TestExtractTextDeterministic(t *testing.T) {
	first, err := ExtractText(strings.NewReader(samplePage))
	if err != nil {
		t.Fatalf("ExtractText returned error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := ExtractText(strings.NewReader(samplePage))
		if err != nil {
			t.Fatalf("ExtractText returned error: %v", err)
		}
		if again != first {
			t.Fatalf("extraction not deterministic:\n%q\n%q", first, again)
		}
	}
}

func TestHTTPFetcherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if r.Header.Get("User-Agent") != "test-agent" {
				t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
			}
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(samplePage))
		case "/empty":
			_, _ = w.Write([]byte("<html><body><script>x()</script></body></html>"))
		case "/slow":
			time.Sleep(300 * time.Millisecond)
			_, _ = w.Write([]byte("<p>late</p>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(Options{Timeout: 100 * time.Millisecond, UserAgent: "test-agent"})
	ctx := context.Background()

	text, ok := f.Fetch(ctx, srv.URL+"/ok")
	if !ok {
		t.Fatalf("expected fetch to succeed")
	}
	if !strings.Contains(text, "Version 2.0 released.") {
		t.Fatalf("unexpected text: %q", text)
	}

	cases := map[string]string{
		"not found":   srv.URL + "/missing",
		"empty text":  srv.URL + "/empty",
		"timeout":     srv.URL + "/slow",
		"bad address": "http://127.0.0.1:1/unreachable",
	}
	for name, url := range cases {
		t.Run(name, func(t *testing.T) {
			if got, ok := f.Fetch(ctx, url); ok {
				t.Fatalf("expected fetch failure, got %q", got)
			}
		})
	}
}

func TestFetcherFunc(t *testing.T) {
	var f Fetcher = FetcherFunc(func(ctx context.Context, url string) (string, bool) {
		return "content of " + url, true
	})
	got, ok := f.Fetch(context.Background(), "x")
	if !ok || got != "content of x" {
		t.Fatalf("unexpected result %q %v", got, ok)
	}
}
