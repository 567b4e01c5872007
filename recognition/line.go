package recognition

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Line reads transcripts as text lines, either from the stdout of an
// external recognizer command or from a reader. A plain line is one
// finalized fragment. A JSON line {"index":N,"text":"…","final":bool}
// carries interim revisions too.
type Line struct {
	Command string
	Args    []string
	Input   io.Reader
}

func (l *Line) Name() string { return "line" }

func (l *Line) Available() error {
	switch {
	case l.Command != "":
		if _, err := exec.LookPath(l.Command); err != nil {
			return fmt.Errorf("recognizer command: %w", err)
		}
		return nil
	case l.Input != nil:
		return nil
	default:
		return errors.New("no recognizer command configured")
	}
}

func (l *Line) Open(ctx context.Context, _ Config) (Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	s := &lineStream{cancel: cancel, events: make(chan Event, 32)}

	r := l.Input
	if l.Command != "" {
		cmd := exec.CommandContext(streamCtx, l.Command, l.Args...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			cancel()
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			cancel()
			return nil, fmt.Errorf("start %s: %w", l.Command, err)
		}
		s.cmd = cmd
		r = stdout
	}

	go s.read(streamCtx, r)
	return s, nil
}

type lineResult struct {
	Index *int   `json:"index"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

type lineStream struct {
	cancel context.CancelFunc
	cmd    *exec.Cmd
	events chan Event
	once   sync.Once
}

func (s *lineStream) Feed([]byte)          {}
func (s *lineStream) Events() <-chan Event { return s.events }

func (s *lineStream) read(ctx context.Context, r io.Reader) {
	defer close(s.events)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	next := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		res, ok := parseLine(line, next)
		if !ok {
			continue
		}
		if res.Index >= next {
			next = res.Index
			if res.Final {
				next++
			}
		}
		select {
		case s.events <- Event{Results: []Result{res}}:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		select {
		case s.events <- Event{Err: fmt.Errorf("read transcript lines: %w", err)}:
		case <-ctx.Done():
		}
	}
}

func parseLine(line string, next int) (Result, bool) {
	if !strings.HasPrefix(line, "{") {
		return Result{Index: next, Text: line, Final: true}, true
	}
	var lr lineResult
	if err := json.Unmarshal([]byte(line), &lr); err != nil {
		return Result{Index: next, Text: line, Final: true}, true
	}
	idx := next
	if lr.Index != nil {
		idx = *lr.Index
	}
	return Result{Index: idx, Text: lr.Text, Final: lr.Final}, true
}

func (s *lineStream) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		if s.cmd != nil {
			err = s.cmd.Wait()
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				err = nil
			}
		}
	})
	return err
}
