package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		texts []string
		path  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		mu.Lock()
		path = r.URL.Path
		texts = append(texts, r.PostForm.Get("text"))
		mu.Unlock()
		if r.PostForm.Get("chat_id") != "42" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewNotifier("token", "42", srv.URL+"/", zerolog.Nop())
	if err := n.PublishDigest(context.Background(), "- NVIDIA posts record quarter\nvia Morning Brew\n"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	mu.Lock()
	gotPath, gotTexts := path, append([]string(nil), texts...)
	mu.Unlock()
	if gotPath != "/bottoken/sendMessage" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if len(gotTexts) != 1 || !strings.HasPrefix(gotTexts[0], "NewsPod digest") || !strings.Contains(gotTexts[0], "NVIDIA") {
		t.Fatalf("unexpected messages %q", gotTexts)
	}

	bad := NewNotifier("token", "7", srv.URL, zerolog.Nop())
	if err := bad.PublishDigest(context.Background(), "story"); err == nil {
		t.Fatalf("expected error for a rejected request")
	}
}

func TestPublishDigestMisconfigured(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "42", "", zerolog.Nop()).PublishDigest(context.Background(), "x"); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	story := strings.Repeat("é", 30) + "\n" + strings.Repeat("word ", 10) + "\n\n"
	text := strings.Repeat(story, 20)

	parts := split(text, 200)
	if len(parts) < 2 {
		t.Fatalf("expected several parts, got %d", len(parts))
	}
	var joined strings.Builder
	for _, p := range parts {
		if utf8.RuneCountInString(p) > 200 {
			t.Fatalf("part exceeds the limit: %d runes", utf8.RuneCountInString(p))
		}
		if !utf8.ValidString(p) {
			t.Fatalf("part splits a rune")
		}
		joined.WriteString(p)
	}
	if strings.Count(joined.String(), "é") != 600 {
		t.Fatalf("text lost while splitting")
	}
}
