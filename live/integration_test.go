package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"transcribo/enrich"
	"transcribo/frame"
	"transcribo/recognition"
	"transcribo/view"
	"transcribo/waveform"
)

// syncSink collects snapshots from the real loop goroutine.
type syncSink struct {
	mu      sync.Mutex
	frames  int
	notices []enrich.Notice
}

func (s *syncSink) Changed(Snapshot) {}

func (s *syncSink) Notice(n enrich.Notice) {
	s.mu.Lock()
	s.notices = append(s.notices, n)
	s.mu.Unlock()
}

func (s *syncSink) Frame(float64) {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
}

func waitFor(t *testing.T, c *Controller, what string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s := c.Current(); cond(s) {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s, last snapshot %+v", what, c.Current())
	return Snapshot{}
}

// TestEndToEnd runs a line-fed recognition session and both enrichment
// stages against a fake service over HTTP on a real frame loop.
func TestEndToEnd(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies = map[string]string{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text           string `json:"text"`
			TargetLanguage string `json:"target_language"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		bodies[r.URL.Path] = req.Text
		mu.Unlock()

		switch r.URL.Path {
		case enrich.PathTranslate:
			w.Write([]byte(`{"success":true,"translated_text":"hola mundo"}`))
		case enrich.PathEnhance:
			w.Write([]byte(`{"success":true,"structured_text":"- hola mundo","expressive_text":"¡Hola, mundo!","summary":"Un saludo."}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := frame.NewLoop(120)
	go loop.Run(ctx)

	sink := &syncSink{}
	engine := &recognition.Line{Input: strings.NewReader("hello\n{\"index\":1,\"text\":\"wor\"}\n{\"index\":1,\"text\":\"world\",\"final\":true}\n")}
	c := New(ctx, loop, Deps{
		Engine:         engine,
		Canvas:         waveform.NewRaster(80, 20),
		Bars:           8,
		Service:        enrich.NewClient(srv.URL, 2*time.Second),
		Sink:           sink,
		TargetLanguage: "spanish",
	})
	c.Run()

	c.Toggle()
	s := waitFor(t, c, "transcript", func(s Snapshot) bool { return s.Texts.Raw == "hello world " })
	if s.MicErr == nil {
		t.Error("expected a microphone error without a capture device")
	}
	c.StopRecording()
	waitFor(t, c, "stop", func(s Snapshot) bool { return s.State == recognition.Stopped })

	c.Translate()
	s = waitFor(t, c, "translation", func(s Snapshot) bool { return s.Pipeline.Translate == enrich.Success })
	if s.Active != view.Translated || s.Texts.Translated != "hola mundo" {
		t.Errorf("after translate: active %v, text %q", s.Active, s.Texts.Translated)
	}

	c.Enhance()
	s = waitFor(t, c, "enhancement", func(s Snapshot) bool { return s.Pipeline.Enhance == enrich.Success })
	if len(s.Tabs) != 5 {
		t.Errorf("tabs = %v", s.Tabs)
	}
	if got := view.Label(s.Texts, view.Translated); got != "Spanish" {
		t.Errorf("translated label = %q", got)
	}

	mu.Lock()
	if got := bodies[enrich.PathTranslate]; got != "hello world" {
		t.Errorf("translate text = %q", got)
	}
	if got := bodies[enrich.PathEnhance]; got != "hola mundo" {
		t.Errorf("enhance text = %q", got)
	}
	mu.Unlock()

	c.Clear()
	waitFor(t, c, "clear", func(s Snapshot) bool { return s.Texts.Raw == "" && len(s.Tabs) <= 1 })

	sink.mu.Lock()
	frames := sink.frames
	sink.mu.Unlock()
	if frames == 0 {
		t.Error("no waveform frames drawn")
	}
	c.Shutdown()
}
