// Package doctor runs the -doctor diagnostics: microphone, recognition
// engine, enrichment service, hotkey and clipboard.
package doctor

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"transcribo/audio"
	"transcribo/enrich"
	"transcribo/recognition"
)

// Service is the part of the enrichment client the doctor probes.
type Service interface {
	BaseURL() string
	Health(ctx context.Context) (*enrich.Health, error)
	APIStatus(ctx context.Context) (enrich.APIStatus, error)
}

type Checks struct {
	Out io.Writer

	// Audio opens the capture backend; nil skips the microphone check.
	Audio  func() (audio.Context, error)
	Device string
	// Listen is how long the microphone is sampled.
	Listen time.Duration

	Engine  recognition.Engine
	Service Service

	Hotkey    func() (string, error)
	Clipboard func() bool
}

type result int

const (
	pass result = iota
	warn
	fail
)

type step struct {
	name string
	run  func(ctx context.Context) (result, string)
}

// Run executes every check and returns an exit code (0 when nothing failed).
func Run(ctx context.Context, c Checks) int {
	steps := []step{
		{"Microphone", c.checkMicrophone},
		{"Speech recognition", c.checkEngine},
		{"Enrichment service", c.checkService},
		{"Hotkey", c.checkHotkey},
		{"Clipboard", c.checkClipboard},
	}

	fmt.Fprintln(c.Out, "transcribo doctor")
	fmt.Fprintln(c.Out, "=================")
	failed := 0
	for i, s := range steps {
		fmt.Fprintf(c.Out, "\n[%d/%d] %s\n", i+1, len(steps), s.name)
		r, msg := s.run(ctx)
		switch r {
		case pass:
			fmt.Fprintf(c.Out, "  PASS: %s\n", msg)
		case warn:
			fmt.Fprintf(c.Out, "  WARN: %s\n", msg)
		default:
			failed++
			fmt.Fprintf(c.Out, "  FAIL: %s\n", msg)
		}
	}

	fmt.Fprintln(c.Out)
	if failed > 0 {
		fmt.Fprintf(c.Out, "%d check(s) failed. See details above.\n", failed)
		return 1
	}
	fmt.Fprintln(c.Out, "All checks passed!")
	return 0
}

func (c Checks) checkMicrophone(ctx context.Context) (result, string) {
	if c.Audio == nil {
		return warn, "skipped"
	}
	actx, err := c.Audio()
	if err != nil {
		return fail, fmt.Sprintf("cannot connect to audio: %v", err)
	}
	defer actx.Close()

	devices, err := actx.Devices()
	if err != nil {
		return fail, fmt.Sprintf("cannot list devices: %v", err)
	}
	if len(devices) == 0 {
		return fail, "no capture devices found"
	}
	device, err := audio.FindDevice(actx, c.Device)
	if err != nil {
		return fail, err.Error()
	}
	name := "default device"
	if device != nil {
		name = device.Name
	}

	capture, err := actx.NewCapture(device, audio.DefaultConfig())
	if err != nil {
		return fail, fmt.Sprintf("open %s: %v", name, err)
	}
	defer capture.Close()

	peak, bytes, err := listen(ctx, capture, c.Listen)
	if err != nil {
		return fail, fmt.Sprintf("capture from %s: %v", name, err)
	}
	if bytes == 0 {
		return fail, fmt.Sprintf("no audio captured from %s", name)
	}
	if peak == 0 {
		return warn, fmt.Sprintf("%s captured %.1f KB of silence", name, float64(bytes)/1024)
	}
	return pass, fmt.Sprintf("%s, peak level %.2f", name, peak)
}

// listen samples capture for d and returns the peak loudness seen.
func listen(ctx context.Context, capture audio.CaptureDevice, d time.Duration) (float64, int, error) {
	if d <= 0 {
		d = 2 * time.Second
	}
	var (
		mu       sync.Mutex
		total    int
		analyser = audio.NewAnalyser()
	)
	capture.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		total += len(data)
		mu.Unlock()
		analyser.Write(data)
	})
	defer capture.ClearCallback()
	if err := capture.Start(); err != nil {
		return 0, 0, err
	}
	defer capture.Stop()

	var peak float64
	bins := make([]byte, analyser.BinCount())
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(d)
	for {
		select {
		case <-ctx.Done():
			return peak, total, ctx.Err()
		case <-deadline:
			mu.Lock()
			defer mu.Unlock()
			return peak, total, nil
		case <-tick.C:
			peak = max(peak, audio.Loudness(analyser.ByteFrequencyData(bins)))
		}
	}
}

func (c Checks) checkEngine(context.Context) (result, string) {
	if c.Engine == nil {
		return fail, "no engine configured"
	}
	if err := c.Engine.Available(); err != nil {
		return fail, fmt.Sprintf("%s: %v", c.Engine.Name(), err)
	}
	return pass, c.Engine.Name() + " ready"
}

func (c Checks) checkService(ctx context.Context) (result, string) {
	if c.Service == nil {
		return warn, "skipped"
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	h, err := c.Service.Health(ctx)
	if err != nil {
		return fail, fmt.Sprintf("%s unreachable: %v", c.Service.BaseURL(), err)
	}
	if h.Status != "healthy" && h.Status != "ok" {
		return fail, fmt.Sprintf("%s reports %q: %s", c.Service.BaseURL(), h.Status, h.Message)
	}

	st, err := c.Service.APIStatus(ctx)
	if err != nil {
		return warn, fmt.Sprintf("%s healthy, api status unavailable: %v", c.Service.BaseURL(), err)
	}
	return pass, fmt.Sprintf("%s healthy (%s)", c.Service.BaseURL(), describe(st))
}

// describe summarises backends as "name=status" sorted by name.
func describe(st enrich.APIStatus) string {
	if len(st) == 0 {
		return "no backends reported"
	}
	names := make([]string, 0, len(st))
	for n := range st {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		b := st[n]
		s := b.Status
		if !b.Configured {
			s = "not configured"
		}
		parts[i] = n + "=" + s
	}
	return strings.Join(parts, ", ")
}

func (c Checks) checkHotkey(context.Context) (result, string) {
	if c.Hotkey == nil {
		return warn, "skipped"
	}
	msg, err := c.Hotkey()
	if err != nil {
		return warn, err.Error()
	}
	return pass, msg
}

func (c Checks) checkClipboard(context.Context) (result, string) {
	if c.Clipboard == nil {
		return warn, "skipped"
	}
	if c.Clipboard() {
		return pass, "available"
	}
	return warn, "no clipboard utility found (install xclip, xsel or wl-clipboard)"
}
