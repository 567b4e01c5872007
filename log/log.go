package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const EnvLogPath = "TRANSCRIBO_LOG_PATH"

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcriptFile *os.File
	logMu          sync.Mutex
	logReady       atomic.Bool
	pid            int
	dir            string
)

// StageData describes one enrichment call.
type StageData struct {
	Stage      string
	Status     string
	Endpoint   string
	InputChars int
	DNSMs      float64
	TLSMs      float64
	TTFBMs     float64
	TotalMs    float64
	ConnReused bool
	Fallback   bool
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: TRANSCRIBO_LOG_PATH
	if envPath := os.Getenv(EnvLogPath); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: OS default
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, "diagnostics_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcriptFile, err = os.OpenFile(filepath.Join(dir, "transcript_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady.Store(true)
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady.Store(false)
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcriptFile != nil {
		transcriptFile.Close()
		transcriptFile = nil
	}
}

func Info(msg string) {
	if logReady.Load() {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady.Load() {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady.Load() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady.Load() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// TranscriptText appends one finalized fragment to transcript_log.txt.
func TranscriptText(text string) {
	if !logReady.Load() {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if transcriptFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcriptFile.WriteString(line)
}

func StageMetrics(d StageData) {
	if !logReady.Load() {
		return
	}
	connStatus := "new"
	if d.ConnReused {
		connStatus = "reused"
	}
	diagLog.Info().
		Str("stage", d.Stage).
		Str("status", d.Status).
		Str("endpoint", d.Endpoint).
		Str("conn", connStatus).
		Int("input_chars", d.InputChars).
		Bool("fallback", d.Fallback).
		Float64("dns_ms", d.DNSMs).
		Float64("tls_ms", d.TLSMs).
		Float64("ttfb_ms", d.TTFBMs).
		Float64("total_ms", d.TotalMs).
		Msg("enrich_stage")
}

func RecognitionError(engine string, err error) {
	if !logReady.Load() {
		return
	}
	diagLog.Error().Str("engine", engine).Err(err).Msg("recognition_error")
}

func SessionStart(session, engine, device string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("session", session).
		Str("engine", engine).
		Str("device", device).
		Msg("session_start")
}

func SessionEnd(session string, rawChars int, dur time.Duration) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("session", session).
		Int("raw_chars", rawChars).
		Dur("duration", dur).
		Msg("session_end")
}
