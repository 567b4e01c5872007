package audio

import (
	"os"
	"sync"
	"time"
)

const fakeChunkFrames = 512

// FakeContext hands out FakeCaptures. With pcm set, captures replay it in
// real time on a loop; otherwise they only deliver what Emit is given.
type FakeContext struct {
	pcm []byte
}

func NewFakeContext(wavPath string) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return &FakeContext{pcm: data}, nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm}, nil
}

type FakeCapture struct {
	// StartErr, when set, is returned by Start.
	StartErr error

	pcm []byte

	mu      sync.Mutex
	cb      DataCallback
	running bool
	starts  int
	stops   int
	stopCh  chan struct{}
	done    chan struct{}
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

// Emit delivers pcm to the callback if capture is running.
func (f *FakeCapture) Emit(pcm []byte) bool {
	f.mu.Lock()
	cb, running := f.cb, f.running
	f.mu.Unlock()
	if !running || cb == nil {
		return false
	}
	cb(pcm, uint32(len(pcm)/2))
	return true
}

func (f *FakeCapture) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Counts reports how many times Start and Stop took effect.
func (f *FakeCapture) Counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func (f *FakeCapture) Start() error {
	if f.StartErr != nil {
		return f.StartErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil
	}
	f.running = true
	f.starts++
	if len(f.pcm) > 0 {
		f.stopCh = make(chan struct{})
		f.done = make(chan struct{})
		go f.replay(f.stopCh, f.done)
	}
	return nil
}

func (f *FakeCapture) replay(stop, done chan struct{}) {
	defer close(done)
	chunk := fakeChunkFrames * 2
	interval := time.Duration(fakeChunkFrames) * time.Second / SampleRate
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pos := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		end := min(pos+chunk, len(f.pcm))
		buf := make([]byte, end-pos)
		copy(buf, f.pcm[pos:end])
		f.Emit(buf)
		pos = end
		if pos >= len(f.pcm) {
			pos = 0
		}
	}
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	f.stops++
	stop, done := f.stopCh, f.done
	f.stopCh, f.done = nil, nil
	f.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

func (f *FakeCapture) Close() { f.Stop() }
