package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"transcribo/frame"
)

func sinePCM(bin int, amp float64, n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := amp * math.Sin(2*math.Pi*float64(bin)*float64(i)/FFTSize)
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v*32767)))
	}
	return buf
}

func TestLoudness(t *testing.T) {
	full := make([]byte, 128)
	for i := range full {
		full[i] = 255
	}
	half := make([]byte, 4)
	half[0], half[1] = 255, 255

	tests := []struct {
		name string
		bins []byte
		want float64
	}{
		{"empty", nil, 0},
		{"all zero", make([]byte, 128), 0},
		{"all max", full, 1},
		{"half", half, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Loudness(tt.bins); got != tt.want {
				t.Errorf("Loudness = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalyserSilence(t *testing.T) {
	a := NewAnalyser()
	a.Write(make([]byte, FFTSize*2))
	bins := a.ByteFrequencyData(nil)
	if len(bins) != a.BinCount() {
		t.Fatalf("len(bins) = %d, want %d", len(bins), a.BinCount())
	}
	if l := Loudness(bins); l != 0 {
		t.Errorf("silence loudness = %v, want 0", l)
	}
}

func TestAnalyserTone(t *testing.T) {
	a := NewAnalyser()
	a.Write(sinePCM(16, 0.9, FFTSize))
	bins := a.ByteFrequencyData(nil)
	if bins[16] != 255 {
		t.Errorf("bins[16] = %d, want 255 for a full-scale tone", bins[16])
	}
	if l := Loudness(bins); l <= 0 || l > 1 {
		t.Errorf("tone loudness = %v, want in (0,1]", l)
	}

	a.Reset()
	if l := Loudness(a.ByteFrequencyData(bins)); l != 0 {
		t.Errorf("loudness after Reset = %v, want 0", l)
	}
}

func TestSamplerLifecycle(t *testing.T) {
	sched := frame.NewManual()
	capture := &FakeCapture{}
	var levels []float64
	s := NewSampler(capture, sched, func(l float64) { levels = append(levels, l) })

	var sunk int
	s.SetSink(func(pcm []byte) { sunk += len(pcm) })

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !capture.Running() {
		t.Fatal("capture not started")
	}
	if sched.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", sched.Pending())
	}

	pcm := sinePCM(16, 0.9, FFTSize)
	if !capture.Emit(pcm) {
		t.Fatal("Emit dropped while running")
	}
	if sunk != len(pcm) {
		t.Errorf("sink got %d bytes, want %d", sunk, len(pcm))
	}

	sched.Step()
	if s.Level() <= 0 {
		t.Errorf("Level() = %v after a tone, want > 0", s.Level())
	}
	if sched.Pending() != 1 {
		t.Errorf("loop did not re-request its frame")
	}

	s.Stop()
	if sched.Pending() != 0 {
		t.Errorf("Pending() = %d after Stop, want 0", sched.Pending())
	}
	if capture.Running() {
		t.Error("capture still running after Stop")
	}
	if s.Level() != 0 || levels[len(levels)-1] != 0 {
		t.Errorf("loudness not reset to 0 on Stop")
	}
	if capture.Emit(pcm) {
		t.Error("Emit delivered after Stop")
	}
}

func TestSamplerToggleNoLeak(t *testing.T) {
	sched := frame.NewManual()
	s := NewSampler(&FakeCapture{}, sched, nil)
	for i := 0; i < 5; i++ {
		if err := s.Start(); err != nil {
			t.Fatal(err)
		}
		s.Stop()
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	sched.StepN(3)
	if sched.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", sched.Pending())
	}
}

func TestSamplerUnavailable(t *testing.T) {
	sched := frame.NewManual()

	s := NewSampler(nil, sched, nil)
	if err := s.Start(); !errors.Is(err, ErrMicrophoneUnavailable) {
		t.Errorf("nil capture: err = %v, want ErrMicrophoneUnavailable", err)
	}

	denied := errors.New("permission denied")
	capture := &FakeCapture{StartErr: denied}
	s = NewSampler(capture, sched, nil)
	err := s.Start()
	if !errors.Is(err, ErrMicrophoneUnavailable) || !errors.Is(err, denied) {
		t.Errorf("err = %v, want both ErrMicrophoneUnavailable and the cause", err)
	}
	if s.Active() || sched.Pending() != 0 {
		t.Error("failed Start left the sampler active")
	}
}

func TestFindDevice(t *testing.T) {
	ctx := &FakeContext{}
	d, err := FindDevice(ctx, "FA")
	if err != nil || d == nil || d.Name != "fake" {
		t.Fatalf("FindDevice = %v, %v", d, err)
	}
	if d, err := FindDevice(ctx, ""); d != nil || err != nil {
		t.Errorf("empty name should select the default, got %v, %v", d, err)
	}
	if _, err := FindDevice(ctx, "usb"); !errors.Is(err, ErrMicrophoneUnavailable) {
		t.Errorf("err = %v, want ErrMicrophoneUnavailable", err)
	}
}
