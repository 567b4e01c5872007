// Package enrich talks to the remote enrichment service and tracks the
// translate and enhance stages of one session.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"transcribo/frame"
	"transcribo/log"
)

type Stage int

const (
	Translate Stage = iota
	Structure
	Expressive
	Summarize
)

func (s Stage) String() string {
	switch s {
	case Translate:
		return "translate"
	case Structure:
		return "structure"
	case Expressive:
		return "expressive"
	case Summarize:
		return "summarize"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

type Status int

const (
	Idle Status = iota
	Pending
	Success
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "idle"
}

var (
	// ErrStageFailed marks a call the service answered with success=false.
	ErrStageFailed = errors.New("stage failed")

	ErrEmptyInput   = errors.New("nothing to process yet")
	ErrNoOpLanguage = errors.New("target language leaves the text unchanged")
	ErrStagePending = errors.New("stage already running")
)

// StageError is a failed enrichment call, either ErrStageFailed carrying the
// service's message or a transport error.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return e.Stage.String() + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

type Level int

const (
	Info Level = iota
	Warning
	Error
)

type Notice struct {
	Level Level
	Text  string
}

// Fallback flags outputs the service produced without its AI backend.
type Fallback struct {
	Translation bool
	Structure   bool
	Expressions bool
	Summary     bool
}

func (f Fallback) Any() bool {
	return f.Translation || f.Structure || f.Expressions || f.Summary
}

// Result is one stage's outcome. Structure, Expressive and Summarize share
// the Enhance status.
type Result struct {
	Stage          Stage
	Status         Status
	Text           string
	TargetLanguage string
}

// State is the pipeline's copy-out view.
type State struct {
	Translate Status
	Enhance   Status

	Translated         string
	TranslatedLanguage string
	Structured         string
	Expressive         string
	Summary            string

	Fallback Fallback
}

// Request is one stage invocation. It carries the generation it was issued
// in so completions arriving after Reset are ignored.
type Request struct {
	Stage          Stage
	Text           string
	TargetLanguage string
	gen            uint64
}

// Transition tells the caller what a completion changed.
type Transition struct {
	// Stale is set when the pipeline was reset while the call was in flight.
	Stale bool
	// Notice is the single user-visible message, if any.
	Notice *Notice
	// ShowTranslated asks the presentation to switch to the translation.
	ShowTranslated bool
	Err            error
}

// Pipeline is the two-stage enrichment state machine. It must only be used
// from the frame loop; network calls run elsewhere and come back through
// Complete*.
type Pipeline struct {
	state State
	gen   uint64
}

func NewPipeline() *Pipeline { return &Pipeline{} }

func (p *Pipeline) State() State { return p.state }

// Results lists every stage with its status and text. target decides
// whether an idle Translate counts as skipped.
func (p *Pipeline) Results(target string) []Result {
	ts := p.state.Translate
	if ts == Idle && NoOpLanguage(target) {
		ts = Skipped
	}
	return []Result{
		{Stage: Translate, Status: ts, Text: p.state.Translated, TargetLanguage: p.state.TranslatedLanguage},
		{Stage: Structure, Status: p.state.Enhance, Text: p.state.Structured, TargetLanguage: target},
		{Stage: Expressive, Status: p.state.Enhance, Text: p.state.Expressive, TargetLanguage: target},
		{Stage: Summarize, Status: p.state.Enhance, Text: p.state.Summary, TargetLanguage: target},
	}
}

// Reset clears every output and status. Calls still in flight are ignored
// when they complete.
func (p *Pipeline) Reset() {
	p.state = State{}
	p.gen++
}

// BeginTranslate marks Translate pending and returns the call to make.
func (p *Pipeline) BeginTranslate(raw, target string) (Request, error) {
	text := strings.TrimSpace(raw)
	switch {
	case text == "":
		return Request{}, ErrEmptyInput
	case NoOpLanguage(target):
		return Request{}, ErrNoOpLanguage
	case p.state.Translate == Pending:
		return Request{}, ErrStagePending
	}
	p.state.Translate = Pending
	return Request{Stage: Translate, Text: text, TargetLanguage: target, gen: p.gen}, nil
}

// EnhanceInput is the text Enhance works on: the translation when there is
// one, else the raw transcript.
func (p *Pipeline) EnhanceInput(raw string) string {
	if t := strings.TrimSpace(p.state.Translated); t != "" {
		return t
	}
	return strings.TrimSpace(raw)
}

// BeginEnhance marks Enhance pending and returns the call to make. The
// input is read now, not when the call completes.
func (p *Pipeline) BeginEnhance(raw, target string) (Request, error) {
	text := p.EnhanceInput(raw)
	switch {
	case text == "":
		return Request{}, ErrEmptyInput
	case p.state.Enhance == Pending:
		return Request{}, ErrStagePending
	}
	p.state.Enhance = Pending
	return Request{Stage: Structure, Text: text, TargetLanguage: target, gen: p.gen}, nil
}

func (p *Pipeline) CompleteTranslate(req Request, resp *TranslateResponse, err error) Transition {
	if req.gen != p.gen {
		return Transition{Stale: true}
	}
	if err == nil && !resp.Success {
		err = serviceError(resp.Error)
	}
	if err != nil {
		p.state.Translate = Failed
		return failed(Translate, err)
	}

	p.state.Translate = Success
	p.state.Translated = resp.TranslatedText
	p.state.TranslatedLanguage = req.TargetLanguage
	p.state.Fallback.Translation = resp.FallbackUsed

	tr := Transition{ShowTranslated: strings.TrimSpace(resp.TranslatedText) != ""}
	if resp.FallbackUsed {
		tr.Notice = &Notice{Level: Warning, Text: "Translation service unavailable; showing fallback text"}
	}
	return tr
}

func (p *Pipeline) CompleteEnhance(req Request, resp *EnhanceResponse, err error) Transition {
	if req.gen != p.gen {
		return Transition{Stale: true}
	}
	if err == nil && !resp.Success {
		err = serviceError(resp.Error)
	}
	if err != nil {
		p.state.Enhance = Failed
		return failed(Structure, err)
	}

	p.state.Enhance = Success
	p.state.Structured = resp.StructuredText
	p.state.Expressive = resp.ExpressiveText
	p.state.Summary = resp.Summary
	p.state.Fallback.Structure = resp.FallbackUsed && resp.StructuredText != ""
	p.state.Fallback.Expressions = resp.FallbackUsed && resp.ExpressiveText != ""
	p.state.Fallback.Summary = resp.FallbackUsed && resp.Summary != ""

	var partial []string
	for _, e := range []struct{ name, msg string }{
		{"structure", resp.StructureError},
		{"expressions", resp.ExpressionsError},
		{"summary", resp.SummaryError},
	} {
		if e.msg != "" {
			partial = append(partial, e.name)
		}
	}
	if len(partial) > 0 {
		return Transition{Notice: &Notice{
			Level: Warning,
			Text:  "Enhanced with gaps: " + strings.Join(partial, ", ") + " unavailable",
		}}
	}
	return Transition{}
}

// LoadTranscription installs the outputs of a file transcription.
func (p *Pipeline) LoadTranscription(resp *TranscribeResponse, target string) Transition {
	p.Reset()
	if resp.TranslatedText != "" && !NoOpLanguage(target) {
		p.state.Translate = Success
		p.state.Translated = resp.TranslatedText
		p.state.TranslatedLanguage = target
	}
	if resp.StructuredText != "" || resp.ExpressiveText != "" || resp.Summary != "" {
		p.state.Enhance = Success
		p.state.Structured = resp.StructuredText
		p.state.Expressive = resp.ExpressiveText
		p.state.Summary = resp.Summary
	}
	p.state.Fallback = Fallback{
		Translation: resp.TranslationFallback,
		Structure:   resp.StructureFallback,
		Expressions: resp.ExpressionsFallback,
		Summary:     resp.SummaryFallback,
	}

	tr := Transition{ShowTranslated: p.state.Translated != ""}
	if resp.TranslationError != "" {
		tr.Notice = &Notice{Level: Warning, Text: "Translation failed: " + resp.TranslationError}
	}
	return tr
}

func serviceError(msg string) error {
	if msg == "" {
		return ErrStageFailed
	}
	return fmt.Errorf("%w: %s", ErrStageFailed, msg)
}

func failed(stage Stage, err error) Transition {
	se := &StageError{Stage: stage, Err: err}
	label := "Translation"
	if stage != Translate {
		label = "Enhancement"
	}
	text := label + " failed. Please check your connection and try again."
	if errors.Is(err, ErrStageFailed) {
		text = label + " failed: " + strings.TrimPrefix(err.Error(), ErrStageFailed.Error()+": ")
	}
	return Transition{Notice: &Notice{Level: Error, Text: text}, Err: se}
}

// Run performs req against svc on its own goroutine and posts the
// completion back to the loop, where done receives the transition.
func (p *Pipeline) Run(ctx context.Context, svc Service, poster frame.Poster, req Request, done func(Transition)) {
	go func() {
		var (
			tr      func() Transition
			metrics *NetworkMetrics
			fb      bool
		)
		switch req.Stage {
		case Translate:
			resp, err := svc.Translate(ctx, req.Text, req.TargetLanguage)
			if resp != nil {
				metrics, fb = resp.Metrics, resp.FallbackUsed
			}
			tr = func() Transition { return p.CompleteTranslate(req, resp, err) }
		default:
			resp, err := svc.Enhance(ctx, req.Text, req.TargetLanguage)
			if resp != nil {
				metrics, fb = resp.Metrics, resp.FallbackUsed || resp.TranslationFallback
			}
			tr = func() Transition { return p.CompleteEnhance(req, resp, err) }
		}

		poster.Post(func() {
			t := tr()
			logStage(req, t, metrics, fb)
			if done != nil {
				done(t)
			}
		})
	}()
}

func logStage(req Request, t Transition, m *NetworkMetrics, fallback bool) {
	status := "success"
	switch {
	case t.Stale:
		status = "stale"
	case t.Err != nil:
		status = "failed"
		log.Warnf("%v", t.Err)
	}
	endpoint := PathTranslate
	if req.Stage != Translate {
		endpoint = PathEnhance
	}
	d := log.StageData{
		Stage:      req.Stage.String(),
		Status:     status,
		Endpoint:   endpoint,
		InputChars: len(req.Text),
		Fallback:   fallback,
	}
	if m != nil {
		d.DNSMs = ms(m.DNS)
		d.TLSMs = ms(m.TLS)
		d.TTFBMs = ms(m.TTFB)
		d.TotalMs = ms(m.Total)
		d.ConnReused = m.ConnReused
	}
	log.StageMetrics(d)
}
