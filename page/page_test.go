package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sampleMarkup = `<!doctype html>
<html><head>
<title>Acme</title>
<style>.hero { color: red; }</style>
</head><body>
<section class="hero" style="padding: 40px">
  <h1>Welcome</h1>
  <script>initHero();</script>
</section>
</body></html>`

func TestParseCollectsStylesAndScripts(t *testing.T) {
	doc, err := Parse("https://example.com", sampleMarkup)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(doc.Styles, ".hero { color: red; }") {
		t.Errorf("Styles missing <style> block: %q", doc.Styles)
	}
	if !strings.Contains(doc.Styles, "padding: 40px") {
		t.Errorf("Styles missing inline style attribute: %q", doc.Styles)
	}
	if !strings.Contains(doc.Scripts, "initHero()") {
		t.Errorf("Scripts missing inline script: %q", doc.Scripts)
	}
}

func TestText(t *testing.T) {
	// WHAT: Text skips script/style content.
	doc, err := Parse("https://example.com", sampleMarkup)
	if err != nil {
		t.Fatal(err)
	}
	text := doc.Text()
	if !strings.Contains(text, "Welcome") {
		t.Errorf("text missing heading: %q", text)
	}
	if strings.Contains(text, "initHero") || strings.Contains(text, "color") {
		t.Errorf("text leaked script/style content: %q", text)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(sampleMarkup))
	}))
	defer srv.Close()

	f := NewFetcher(FetchConfig{URLValidator: func(string) error { return nil }})
	doc, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if doc.URL != srv.URL {
		t.Errorf("URL = %q, want %q", doc.URL, srv.URL)
	}
	if !strings.Contains(doc.Markup, "hero") {
		t.Error("markup not captured")
	}
}

func TestFetchRejectsPrivateByDefault(t *testing.T) {
	// WHY: the default validator must block loopback targets — callers
	// opt out explicitly in tests only.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	f := NewFetcher(FetchConfig{})
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected loopback fetch to be blocked")
	}
}

func TestFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(FetchConfig{URLValidator: func(string) error { return nil }})
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error on 404")
	}
}
