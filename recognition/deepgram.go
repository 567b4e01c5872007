package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

const (
	deepgramURL       = "wss://api.deepgram.com/v1/listen"
	deepgramModel     = "nova-3"
	streamChunkMs     = 100
	streamCloseWait   = 2 * time.Second
	streamQueueChunks = 128
)

var errNoAPIKey = errors.New("DEEPGRAM_API_KEY not set")

// Deepgram streams audio to Deepgram's live endpoint with interim results.
// Each utterance is one result index; is_final closes it.
type Deepgram struct {
	apiKey   string
	endpoint string
}

func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{apiKey: apiKey, endpoint: deepgramURL}
}

// WithEndpoint points the engine at another listen URL.
func (d *Deepgram) WithEndpoint(u string) *Deepgram {
	d.endpoint = u
	return d
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) Available() error {
	if d.apiKey == "" {
		return errNoAPIKey
	}
	return nil
}

func (d *Deepgram) listenURL(cfg Config) (string, error) {
	endpoint, err := url.Parse(d.endpoint)
	if err != nil {
		return "", err
	}
	q := endpoint.Query()
	model := cfg.Model
	if model == "" {
		model = deepgramModel
	}
	q.Set("model", model)
	q.Set("encoding", "linear16")
	q.Set("interim_results", "true")
	if cfg.SampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	}
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

func (d *Deepgram) Open(ctx context.Context, cfg Config) (Stream, error) {
	u, err := d.listenURL(cfg)
	if err != nil {
		return nil, err
	}
	chunk := cfg.SampleRate * max(cfg.Channels, 1) * 2 * streamChunkMs / 1000
	if chunk <= 0 {
		chunk = 3200
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &deepgramStream{
		ctx:        streamCtx,
		cancel:     cancel,
		chunkBytes: chunk,
		audio:      make(chan []byte, streamQueueChunks),
		events:     make(chan Event, 64),
		recvDone:   make(chan struct{}),
		sendDone:   make(chan struct{}),
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)
	go s.run(func() (*websocket.Conn, error) {
		conn, _, err := websocket.Dial(streamCtx, u, &websocket.DialOptions{HTTPHeader: headers})
		return conn, err
	})
	return s, nil
}

type deepgramResponse struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type deepgramStream struct {
	ctx        context.Context
	cancel     context.CancelFunc
	chunkBytes int

	feedMu  sync.Mutex
	feedBuf []byte
	closed  bool
	audio   chan []byte

	events   chan Event
	recvDone chan struct{}
	sendDone chan struct{}

	mu      sync.Mutex
	conn    *websocket.Conn
	closing bool
	failed  bool
}

func (s *deepgramStream) Events() <-chan Event { return s.events }

func (s *deepgramStream) Feed(pcm []byte) {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	if s.closed || s.ctx.Err() != nil {
		return
	}
	s.feedBuf = append(s.feedBuf, pcm...)
	for len(s.feedBuf) >= s.chunkBytes {
		chunk := make([]byte, s.chunkBytes)
		copy(chunk, s.feedBuf)
		s.feedBuf = s.feedBuf[s.chunkBytes:]
		select {
		case s.audio <- chunk:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *deepgramStream) run(dial func() (*websocket.Conn, error)) {
	defer close(s.events)
	defer close(s.recvDone)

	conn, err := dial()
	if err != nil {
		s.cancel()
		s.emit(Event{Err: fmt.Errorf("deepgram connect: %w", err)})
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.send(conn)
	s.receive(conn)
	// events closes only after the sender is gone.
	s.cancel()
	<-s.sendDone
}

func (s *deepgramStream) send(conn *websocket.Conn) {
	defer close(s.sendDone)
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				_ = conn.Write(s.ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
				return
			}
			if err := conn.Write(s.ctx, websocket.MessageBinary, chunk); err != nil {
				s.fail(err)
				s.cancel()
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *deepgramStream) receive(conn *websocket.Conn) {
	index := 0
	for {
		_, data, err := conn.Read(s.ctx)
		if err != nil {
			s.fail(err)
			return
		}

		var resp deepgramResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			s.emit(Event{Err: fmt.Errorf("deepgram decode: %w", err)})
			continue
		}
		if resp.Type != "Results" {
			continue
		}
		text := ""
		if len(resp.Channel.Alternatives) > 0 {
			text = resp.Channel.Alternatives[0].Transcript
		}

		final := resp.IsFinal || resp.SpeechFinal
		s.emit(Event{Results: []Result{{Index: index, Text: text, Final: final}}})
		if final {
			index++
		}
	}
}

func (s *deepgramStream) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// fail reports the first transport error unless the stream is shutting
// down.
func (s *deepgramStream) fail(err error) {
	s.mu.Lock()
	skip := s.closing || s.failed
	s.failed = true
	s.mu.Unlock()
	if skip || s.ctx.Err() != nil {
		return
	}
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return
	}
	s.emit(Event{Err: fmt.Errorf("deepgram stream: %w", err)})
}

// Close flushes buffered audio, asks the server to finish and waits briefly
// for the remaining results.
func (s *deepgramStream) Close() error {
	s.feedMu.Lock()
	if s.closed {
		s.feedMu.Unlock()
		return nil
	}
	s.closed = true
	if len(s.feedBuf) > 0 && s.ctx.Err() == nil {
		select {
		case s.audio <- s.feedBuf:
		default:
		}
		s.feedBuf = nil
	}
	close(s.audio)
	s.feedMu.Unlock()

	s.mu.Lock()
	s.closing = true
	conn := s.conn
	s.mu.Unlock()

	select {
	case <-s.recvDone:
	case <-time.After(streamCloseWait):
	}
	s.cancel()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
	return nil
}
