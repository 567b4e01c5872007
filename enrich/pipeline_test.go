package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type queuePoster chan func()

func (q queuePoster) Post(fn func()) bool {
	q <- fn
	return true
}

// await runs the next posted completion on the test goroutine.
func (q queuePoster) await(t *testing.T) {
	t.Helper()
	select {
	case fn := <-q:
		fn()
	case <-time.After(3 * time.Second):
		t.Fatal("completion never posted")
	}
}

// fakeService answers from canned responses and records request bodies.
type fakeService struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []recorded
	replies  map[string][]string
}

type recorded struct {
	Path           string
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

func newFakeService(t *testing.T) *fakeService {
	f := &fakeService{replies: map[string][]string{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec recorded
		json.NewDecoder(r.Body).Decode(&rec)
		rec.Path = r.URL.Path

		f.mu.Lock()
		f.requests = append(f.requests, rec)
		queue := f.replies[r.URL.Path]
		body := `{"success":false,"error":"no reply queued"}`
		if len(queue) > 0 {
			body, f.replies[r.URL.Path] = queue[0], queue[1:]
		}
		f.mu.Unlock()

		if body == "" {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(f.server.Close)
	return f
}

// reply queues a body for path; an empty body becomes a 502.
func (f *fakeService) reply(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[path] = append(f.replies[path], body)
}

func (f *fakeService) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeService) client() *Client { return NewClient(f.server.URL, time.Second) }

type harness struct {
	p   *Pipeline
	svc *fakeService
	q   queuePoster
}

func newHarness(t *testing.T) *harness {
	return &harness{p: NewPipeline(), svc: newFakeService(t), q: make(queuePoster, 4)}
}

func (h *harness) translate(t *testing.T, raw, target string) Transition {
	t.Helper()
	req, err := h.p.BeginTranslate(raw, target)
	if err != nil {
		t.Fatalf("BeginTranslate: %v", err)
	}
	var got Transition
	h.p.Run(context.Background(), h.svc.client(), h.q, req, func(tr Transition) { got = tr })
	h.q.await(t)
	return got
}

func (h *harness) enhance(t *testing.T, raw, target string) Transition {
	t.Helper()
	req, err := h.p.BeginEnhance(raw, target)
	if err != nil {
		t.Fatalf("BeginEnhance: %v", err)
	}
	var got Transition
	h.p.Run(context.Background(), h.svc.client(), h.q, req, func(tr Transition) { got = tr })
	h.q.await(t)
	return got
}

func TestTranslateThenEnhanceUsesTranslation(t *testing.T) {
	h := newHarness(t)
	h.svc.reply(PathTranslate, `{"success":true,"translated_text":"Hola"}`)
	h.svc.reply(PathEnhance, `{"success":true,"structured_text":"Hola.","summary":"Greeting."}`)

	tr := h.translate(t, "hello ", "Spanish")
	if !tr.ShowTranslated || tr.Notice != nil {
		t.Errorf("translate transition = %+v", tr)
	}
	st := h.p.State()
	if st.Translated != "Hola" || st.Translate != Success || st.TranslatedLanguage != "Spanish" {
		t.Errorf("state = %+v", st)
	}

	h.enhance(t, "hello ", "Spanish")
	if got := h.svc.last(); got.Path != PathEnhance || got.Text != "Hola" || got.TargetLanguage != "Spanish" {
		t.Errorf("enhance request = %+v, want text Hola", got)
	}
	st = h.p.State()
	if st.Enhance != Success || st.Structured != "Hola." || st.Expressive != "" || st.Summary != "Greeting." {
		t.Errorf("state = %+v", st)
	}
}

func TestEnhanceUsesRawWithoutTranslation(t *testing.T) {
	h := newHarness(t)
	h.svc.reply(PathEnhance, `{"success":true,"structured_text":"Hello world."}`)

	h.enhance(t, " hello world ", "English")
	if got := h.svc.last(); got.Text != "hello world" {
		t.Errorf("enhance text = %q, want the raw transcript", got.Text)
	}
}

func TestEnhanceFailureKeepsOutputs(t *testing.T) {
	h := newHarness(t)
	h.svc.reply(PathEnhance, `{"success":true,"structured_text":"S","expressive_text":"E","summary":"Y"}`)
	h.svc.reply(PathEnhance, `{"success":false,"error":"quota"}`)

	h.enhance(t, "text", "English")
	tr := h.enhance(t, "text", "English")

	if tr.Notice == nil || tr.Notice.Level != Error {
		t.Fatalf("no failure notice: %+v", tr)
	}
	var se *StageError
	if !errors.As(tr.Err, &se) || !errors.Is(tr.Err, ErrStageFailed) {
		t.Errorf("Err = %v, want a StageError wrapping ErrStageFailed", tr.Err)
	}
	st := h.p.State()
	if st.Enhance != Failed {
		t.Errorf("Enhance = %v, want failed", st.Enhance)
	}
	if st.Structured != "S" || st.Expressive != "E" || st.Summary != "Y" {
		t.Errorf("failure touched earlier outputs: %+v", st)
	}
}

func TestEnhanceFailureFromEmpty(t *testing.T) {
	h := newHarness(t)
	h.svc.reply(PathEnhance, `{"success":false,"error":"quota"}`)

	tr := h.enhance(t, "text", "English")
	st := h.p.State()
	if st.Structured != "" || st.Expressive != "" || st.Summary != "" {
		t.Errorf("outputs set on failure: %+v", st)
	}
	if st.Enhance != Failed || tr.Notice == nil {
		t.Errorf("Enhance = %v, notice = %v", st.Enhance, tr.Notice)
	}
}

func TestFailedTranslateRetry(t *testing.T) {
	h := newHarness(t)
	h.svc.reply(PathTranslate, `{"success":true,"translated_text":"Bonjour"}`)
	h.svc.reply(PathEnhance, `{"success":true,"structured_text":"Bonjour."}`)
	h.svc.reply(PathTranslate, "")
	h.svc.reply(PathTranslate, `{"success":true,"translated_text":"Hallo"}`)

	h.translate(t, "hello", "French")
	h.enhance(t, "hello", "French")

	tr := h.translate(t, "hello", "German")
	if tr.Notice == nil || tr.Err == nil {
		t.Fatalf("transport failure produced %+v", tr)
	}
	if errors.Is(tr.Err, ErrStageFailed) {
		t.Error("transport error reported as a service failure")
	}
	st := h.p.State()
	if st.Translate != Failed || st.Translated != "Bonjour" {
		t.Errorf("after failure: %+v", st)
	}

	h.translate(t, "hello", "German")
	st = h.p.State()
	if st.Translate != Success || st.Translated != "Hallo" || st.TranslatedLanguage != "German" {
		t.Errorf("retry did not overwrite: %+v", st)
	}
	if st.Enhance != Success || st.Structured != "Bonjour." {
		t.Errorf("translate retry touched enhance output: %+v", st)
	}
}

func TestBeginGuards(t *testing.T) {
	p := NewPipeline()
	if _, err := p.BeginTranslate("  ", "Spanish"); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty raw: %v", err)
	}
	for _, target := range []string{"English", "en", "auto", "original", ""} {
		if _, err := p.BeginTranslate("hi", target); !errors.Is(err, ErrNoOpLanguage) {
			t.Errorf("target %q: %v", target, err)
		}
	}
	if p.State().Translate != Idle {
		t.Error("skipped translate changed status")
	}
	if _, err := p.BeginEnhance("", "English"); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty enhance input: %v", err)
	}

	if _, err := p.BeginTranslate("hi", "Spanish"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.BeginTranslate("hi", "Spanish"); !errors.Is(err, ErrStagePending) {
		t.Errorf("overlapping translate: %v", err)
	}
	if _, err := p.BeginEnhance("hi", "Spanish"); err != nil {
		t.Errorf("enhance should not wait on translate: %v", err)
	}
	if _, err := p.BeginEnhance("hi", "Spanish"); !errors.Is(err, ErrStagePending) {
		t.Errorf("overlapping enhance: %v", err)
	}
}

func TestResetDropsInflight(t *testing.T) {
	p := NewPipeline()
	req, err := p.BeginTranslate("hello", "Spanish")
	if err != nil {
		t.Fatal(err)
	}
	p.Reset()
	tr := p.CompleteTranslate(req, &TranslateResponse{Success: true, TranslatedText: "hola"}, nil)
	if !tr.Stale {
		t.Error("completion after Reset not marked stale")
	}
	if p.State() != (State{}) {
		t.Errorf("stale completion changed state: %+v", p.State())
	}
}

func TestResetIdempotent(t *testing.T) {
	p := NewPipeline()
	req, _ := p.BeginTranslate("hello", "Spanish")
	p.CompleteTranslate(req, &TranslateResponse{Success: true, TranslatedText: "hola", FallbackUsed: true}, nil)

	p.Reset()
	once := p.State()
	p.Reset()
	if p.State() != once || once != (State{}) {
		t.Errorf("Reset twice = %+v, once = %+v", p.State(), once)
	}
}

func TestEnhancePartialWarning(t *testing.T) {
	p := NewPipeline()
	req, _ := p.BeginEnhance("text", "English")
	tr := p.CompleteEnhance(req, &EnhanceResponse{Success: true, StructuredText: "T.", SummaryError: "rate limited"}, nil)
	if tr.Notice == nil || tr.Notice.Level != Warning {
		t.Fatalf("notice = %+v", tr.Notice)
	}
	if p.State().Enhance != Success || p.State().Structured != "T." {
		t.Errorf("state = %+v", p.State())
	}
}

func TestResults(t *testing.T) {
	p := NewPipeline()
	rs := p.Results("English")
	if len(rs) != 4 || rs[0].Status != Skipped {
		t.Fatalf("Results = %+v", rs)
	}
	req, _ := p.BeginEnhance("x", "English")
	p.CompleteEnhance(req, &EnhanceResponse{Success: true, ExpressiveText: "x!"}, nil)
	for _, r := range p.Results("Spanish")[1:] {
		if r.Status != Success {
			t.Errorf("%v status = %v, want success", r.Stage, r.Status)
		}
	}
}

func TestLoadTranscription(t *testing.T) {
	p := NewPipeline()
	tr := p.LoadTranscription(&TranscribeResponse{
		Success:             true,
		Transcript:          "hi",
		TranslatedText:      "hola",
		TranslationFallback: true,
	}, "Spanish")
	if !tr.ShowTranslated {
		t.Error("translated file should switch to the translation")
	}
	st := p.State()
	if st.Translated != "hola" || !st.Fallback.Translation || st.Enhance != Idle {
		t.Errorf("state = %+v", st)
	}

	tr = p.LoadTranscription(&TranscribeResponse{Success: true, Transcript: "hi", TranslatedText: "hi"}, "English")
	if tr.ShowTranslated || p.State().Translated != "" {
		t.Errorf("no-op target kept a translation: %+v", p.State())
	}
}
