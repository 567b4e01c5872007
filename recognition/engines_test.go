package recognition

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func collect(t *testing.T, events <-chan Event, n int) []Event {
	t.Helper()
	var got []Event
	for len(got) < n {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("stream ended after %d events, want %d", len(got), n)
			}
			got = append(got, ev)
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out after %d events, want %d", len(got), n)
		}
	}
	return got
}

func TestLineEngine(t *testing.T) {
	input := strings.Join([]string{
		"hello",
		"",
		`{"index":1,"text":"wor"}`,
		`{"index":1,"text":"world","final":true}`,
		"again",
	}, "\n")
	eng := &Line{Input: strings.NewReader(input)}
	if err := eng.Available(); err != nil {
		t.Fatal(err)
	}
	stream, err := eng.Open(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	want := []Result{
		{Index: 0, Text: "hello", Final: true},
		{Index: 1, Text: "wor"},
		{Index: 1, Text: "world", Final: true},
		{Index: 2, Text: "again", Final: true},
	}
	got := collect(t, stream.Events(), len(want))
	for i, ev := range got {
		if len(ev.Results) != 1 || ev.Results[0] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, ev.Results, want[i])
		}
	}
}

func TestLineEngineUnconfigured(t *testing.T) {
	if err := (&Line{}).Available(); err == nil {
		t.Error("expected an error without a command or input")
	}
}

func TestDeepgramAvailable(t *testing.T) {
	if err := NewDeepgram("").Available(); err == nil {
		t.Error("expected an error without an API key")
	}
}

func TestDeepgramStream(t *testing.T) {
	requests := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.Clone(context.Background())
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusInternalError, "")
		ctx := r.Context()

		if typ, _, err := c.Read(ctx); err != nil || typ != websocket.MessageBinary {
			return
		}
		for _, msg := range []string{
			`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hel"}]}}`,
			`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello"}]}}`,
			`{"type":"Metadata","request_id":"x"}`,
			`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"wor"}]}}`,
		} {
			if err := c.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
				return
			}
		}
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageText && strings.Contains(string(data), "CloseStream") {
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}))
	defer srv.Close()

	eng := NewDeepgram("secret").WithEndpoint("ws" + strings.TrimPrefix(srv.URL, "http"))
	stream, err := eng.Open(context.Background(), Config{SampleRate: 16000, Channels: 1, Language: "en"})
	if err != nil {
		t.Fatal(err)
	}
	stream.Feed(make([]byte, 3200))

	want := []Result{
		{Index: 0, Text: "hel"},
		{Index: 0, Text: "hello", Final: true},
		{Index: 1, Text: "wor"},
	}
	got := collect(t, stream.Events(), len(want))
	for i, ev := range got {
		if ev.Err != nil || len(ev.Results) != 1 || ev.Results[0] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, ev, want[i])
		}
	}

	r := <-requests
	if auth := r.Header.Get("Authorization"); auth != "Token secret" {
		t.Errorf("Authorization = %q", auth)
	}
	q := r.URL.Query()
	for k, v := range map[string]string{
		"interim_results": "true",
		"encoding":        "linear16",
		"sample_rate":     "16000",
		"channels":        "1",
		"language":        "en",
	} {
		if got := q.Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}

	if err := stream.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	for ev := range stream.Events() {
		if ev.Err != nil {
			t.Errorf("error after a clean close: %v", ev.Err)
		}
	}
}

func TestDeepgramDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, _ := url.Parse(srv.URL)
	srv.Close()

	eng := NewDeepgram("k").WithEndpoint("ws://" + u.Host)
	stream, err := eng.Open(context.Background(), Config{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	ev := collect(t, stream.Events(), 1)[0]
	if ev.Err == nil {
		t.Fatalf("first event = %+v, want a connect error", ev)
	}
	stream.Feed(make([]byte, 3200*200))
	if err := stream.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestDeepgramServerDrop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c.Close(websocket.StatusInternalError, "overloaded")
	}))
	defer srv.Close()

	eng := NewDeepgram("k").WithEndpoint("ws" + strings.TrimPrefix(srv.URL, "http"))
	stream, err := eng.Open(context.Background(), Config{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}

	fed := make(chan struct{})
	go func() {
		defer close(fed)
		for range 300 {
			stream.Feed(make([]byte, 3200))
		}
	}()

	errs := 0
	timeout := time.After(3 * time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				done = true
				break
			}
			if ev.Err != nil {
				errs++
			}
		case <-timeout:
			t.Fatal("event channel never closed after the server dropped")
		}
	}
	if errs != 1 {
		t.Errorf("errors = %d, want 1", errs)
	}

	select {
	case <-fed:
	case <-time.After(3 * time.Second):
		t.Fatal("Feed blocked after the server dropped the connection")
	}
	stream.Feed(make([]byte, 3200))
	if err := stream.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
