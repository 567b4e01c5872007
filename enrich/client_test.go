package enrich

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestClientTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != PathTranslate {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
			return
		}
		if req["text"] != "hello" || req["target_language"] != "Spanish" {
			t.Errorf("request = %v", req)
		}
		w.Write([]byte(`{"success":true,"translated_text":"hola","fallback_used":true}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL+"/", time.Second).Translate(context.Background(), "hello", "Spanish")
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.TranslatedText != "hola" || !resp.FallbackUsed {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Metrics == nil {
		t.Error("no network metrics recorded")
	}
}

func TestClientErrorBodies(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     bool
		wantMessage string
	}{
		{"json failure on 500", 500, `{"success":false,"error":"quota"}`, false, "quota"},
		{"json failure on 400", 400, `{"success":false,"error":"No text provided"}`, false, "No text provided"},
		{"html gateway error", 502, `<html>bad gateway</html>`, true, ""},
		{"garbage on 200", 200, `not json`, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			resp, err := NewClient(srv.URL, time.Second).Enhance(context.Background(), "x", "English")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %+v", resp)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if resp.Success || resp.Error != tt.wantMessage {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestErrSnippetRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", maxErrBody-1) + "é" + "tail"
	got := errSnippet([]byte(body))
	if !utf8.ValidString(got) {
		t.Fatalf("snippet is not valid UTF-8: %q", got[len(got)-4:])
	}
	if want := strings.Repeat("a", maxErrBody-1); got != want {
		t.Errorf("snippet length %d, want %d", len(got), len(want))
	}
	if got := errSnippet([]byte("  short  ")); got != "short" {
		t.Errorf("errSnippet(short) = %q", got)
	}
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewClient(url, time.Second).Translate(context.Background(), "a", "French"); err == nil {
		t.Error("expected a transport error")
	}
}

func TestClientTranscribe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "talk.wav")
	if err := os.WriteFile(path, []byte("RIFFdata"), 0644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathTranscribe {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Error(err)
			return
		}
		if got := r.FormValue("target_language"); got != "German" {
			t.Errorf("target_language = %q", got)
		}
		if got := r.FormValue("enhance"); got != "false" {
			t.Errorf("enhance = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Error(err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "talk.wav" || string(data) != "RIFFdata" {
			t.Errorf("file = %s %q", hdr.Filename, data)
		}
		w.Write([]byte(`{"success":true,"transcript":"guten tag","translated_text":"Guten Tag","translation_fallback":true}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, time.Second).Transcribe(context.Background(), path, "German")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Transcript != "guten tag" || resp.TranslatedText != "Guten Tag" || !resp.TranslationFallback {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClientHealthAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathHealth:
			w.Write([]byte(`{"status":"healthy","message":"running"}`))
		case PathAPIStatus:
			w.Write([]byte(`{"assemblyai":{"configured":true,"status":"ready"},"gemini":{"configured":false,"status":"not configured","available_models":["a"]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	h, err := c.Health(context.Background())
	if err != nil || h.Status != "healthy" {
		t.Fatalf("Health = %+v, %v", h, err)
	}
	st, err := c.APIStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !st["assemblyai"].Configured || st["gemini"].Status != "not configured" {
		t.Errorf("APIStatus = %+v", st)
	}
}

func TestLanguages(t *testing.T) {
	for _, l := range []string{"English", "en", "AUTO", "Original", "", "  english "} {
		if !NoOpLanguage(l) {
			t.Errorf("NoOpLanguage(%q) = false", l)
		}
	}
	for _, l := range []string{"Spanish", "fr", "Japanese"} {
		if NoOpLanguage(l) {
			t.Errorf("NoOpLanguage(%q) = true", l)
		}
	}
	if got := NextLanguage("finnish", 1); got != "English" {
		t.Errorf("NextLanguage wraps to %q", got)
	}
	if got := NextLanguage("English", -1); got != "Finnish" {
		t.Errorf("NextLanguage backwards = %q", got)
	}
	if got := CanonicalLanguage(" spanish"); got != "Spanish" {
		t.Errorf("CanonicalLanguage = %q", got)
	}
	if !strings.EqualFold(NextLanguage("Klingon", 1), Languages[0]) {
		t.Error("unknown language should restart the cycle")
	}
}
