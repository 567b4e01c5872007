package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"transcribo/audio"
	"transcribo/clipboard"
	"transcribo/config"
	"transcribo/doctor"
	"transcribo/enrich"
	"transcribo/frame"
	"transcribo/hotkey"
	"transcribo/live"
	"transcribo/log"
	"transcribo/recognition"
	"transcribo/shutdown"
	"transcribo/waveform"
)

var version = "dev"

type options struct {
	configPath string
	logPath    string
	device     string
	setup      bool
	engine     string
	lang       string
	target     string
	serviceURL string
	file       string
	doctor     bool
	listen     time.Duration
	hotkey     bool
	autoStop   bool
	gui        bool
	profile    string
	version    bool
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("transcribo", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "config file (default: $TRANSCRIBO_CONFIG, ./transcribo.yaml, user config dir)")
	fs.StringVar(&o.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.StringVar(&o.device, "device", "", "use the microphone whose name contains this text")
	fs.BoolVar(&o.setup, "setup", false, "select microphone device interactively")
	fs.StringVar(&o.engine, "engine", "", "speech recognition engine: deepgram or line")
	fs.StringVar(&o.lang, "lang", "", "recognition language (e.g. en-US)")
	fs.StringVar(&o.target, "target", "", "translation target language (e.g. Spanish)")
	fs.StringVar(&o.serviceURL, "service", "", "enrichment service base URL")
	fs.StringVar(&o.file, "file", "", "transcribe a recorded audio/video file instead of starting idle")
	fs.BoolVar(&o.doctor, "doctor", false, "run system diagnostics and exit")
	fs.DurationVar(&o.listen, "listen", 2*time.Second, "how long -doctor samples the microphone")
	fs.BoolVar(&o.hotkey, "hotkey", true, "toggle recording with "+hotkey.Combo)
	fs.BoolVar(&o.autoStop, "autostop", false, "stop recording after 30s without voice")
	fs.BoolVar(&o.gui, "gui", false, "open the desktop window (needs a -tags gui build)")
	fs.StringVar(&o.profile, "profile", "", "enable pprof profiling server (e.g. localhost:6060)")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

// apply lets flags override the config file.
func (o *options) apply(cfg *config.Root) {
	if o.device != "" {
		cfg.Audio.Device = o.device
	}
	if o.engine != "" {
		cfg.Recognition.Engine = o.engine
	}
	if o.lang != "" {
		cfg.Recognition.Language = o.lang
	}
	if o.target != "" {
		cfg.Translation.TargetLanguage = o.target
	}
	if o.serviceURL != "" {
		cfg.Service.URL = o.serviceURL
	}
	if o.logPath != "" {
		cfg.Log.Path = o.logPath
	}
}

func initCrashLog() {
	dir, err := log.ResolveDir("")
	if err != nil {
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, "crash_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
}

func newEngine(cfg config.Recognition) (recognition.Engine, error) {
	switch cfg.Engine {
	case "", "deepgram":
		return recognition.NewDeepgram(os.Getenv("DEEPGRAM_API_KEY")), nil
	case "line":
		l := &recognition.Line{}
		if len(cfg.Command) > 0 {
			l.Command, l.Args = cfg.Command[0], cfg.Command[1:]
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown recognition engine %q (use deepgram or line)", cfg.Engine)
	}
}

// openCapture returns a nil device when no microphone can be opened;
// recording then runs without the waveform.
func openCapture(actx audio.Context, name string) audio.CaptureDevice {
	if actx == nil {
		return nil
	}
	dev, err := audio.FindDevice(actx, name)
	if err != nil {
		log.Warnf("%v", err)
		fmt.Fprintf(os.Stderr, "Warning: %v, using the default device\n", err)
		dev = nil
	}
	capture, err := actx.NewCapture(dev, audio.DefaultConfig())
	if err != nil {
		log.Warnf("capture device init error: %v", err)
		return nil
	}
	return capture
}

// app holds everything a presentation needs to drive a session.
type app struct {
	opts   *options
	cfg    *config.Root
	loop   *frame.Loop
	client *enrich.Client
	engine recognition.Engine
	audio  audio.Context
	ctrl   *live.Controller

	capture audio.CaptureDevice
}

func (a *app) deps(canvas waveform.Canvas, sink live.Sink) live.Deps {
	a.capture = openCapture(a.audio, a.cfg.Audio.Device)
	return live.Deps{
		Capture: a.capture,
		Engine:  a.engine,
		Recognition: recognition.Config{
			Language:   a.cfg.Recognition.Language,
			Model:      a.cfg.Recognition.Model,
			SampleRate: a.cfg.Audio.SampleRate,
			Channels:   audio.Channels,
		},
		Canvas:         canvas,
		Bars:           a.cfg.Waveform.Bars,
		Service:        a.client,
		Files:          a.client,
		Sink:           sink,
		TargetLanguage: a.cfg.Translation.TargetLanguage,
	}
}

// start wires the hotkey and the optional file upload once the
// controller exists.
func (a *app) start(ctx context.Context) {
	a.ctrl.Run()
	if a.opts.file != "" {
		a.ctrl.LoadFile(a.opts.file)
	}
	if !a.opts.hotkey {
		return
	}
	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Warnf("hotkey unavailable: %v", err)
		return
	}
	go func() {
		defer hk.Unregister()
		for action := range hotkey.Watch(ctx, hk, hotkey.DefaultHold) {
			if action == hotkey.Start {
				a.ctrl.StartRecording()
			} else {
				a.ctrl.StopRecording()
			}
		}
	}()
}

func (a *app) close() {
	if a.ctrl != nil {
		a.ctrl.Shutdown()
	}
	if a.capture != nil {
		a.capture.Close()
		a.capture = nil
	}
	if a.audio != nil {
		a.audio.Close()
		a.audio = nil
	}
}

// setup does everything before a presentation takes over. It returns a
// nil app when the process is done (version, doctor).
func setup(ctx context.Context, args []string) (*app, int) {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, 0
		}
		return nil, 2
	}
	if opts.version {
		fmt.Printf("transcribo %s\n", version)
		return nil, 0
	}

	config.LoadDefaultEnv()
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, 1
	}
	opts.apply(cfg)

	logDir, err := log.ResolveDir(cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return nil, 1
	}
	log.SetDir(logDir)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	if cfg.Path != "" {
		log.Infof("config loaded from %s", cfg.Path)
	}

	if opts.profile != "" {
		go func() {
			if err := http.ListenAndServe(opts.profile, nil); err != nil {
				log.Errorf("pprof server error: %v", err)
			}
		}()
	}

	engine, err := newEngine(cfg.Recognition)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, 1
	}
	client := enrich.NewClient(cfg.Service.URL, cfg.ServiceTimeout())

	if opts.doctor {
		code := doctor.Run(ctx, doctor.Checks{
			Out:       os.Stdout,
			Audio:     audio.NewContext,
			Device:    cfg.Audio.Device,
			Listen:    opts.listen,
			Engine:    engine,
			Service:   client,
			Hotkey:    hotkey.Diagnose,
			Clipboard: clipboard.Available,
		})
		return nil, code
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: no audio backend (%v), recording without waveform\n", err)
		actx = nil
	}
	if opts.setup && actx != nil {
		dev, err := audio.SelectDevice(actx)
		switch {
		case errors.Is(err, audio.ErrSelectionCancelled):
			return nil, 0
		case err != nil:
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\n", err)
		case dev != nil:
			cfg.Audio.Device = dev.Name
		}
	}

	return &app{
		opts:   opts,
		cfg:    cfg,
		loop:   frame.NewLoop(cfg.Waveform.FPS),
		client: client,
		engine: engine,
		audio:  actx,
	}, 0
}

func run() {
	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	defer log.Close()

	a, code := setup(ctx, os.Args[1:])
	if a == nil {
		log.Close()
		os.Exit(code)
	}
	defer a.close()

	if a.opts.gui {
		initGUI(ctx, a)
		return
	}
	if err := runTUI(ctx, a); err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		a.close()
		log.Close()
		os.Exit(1)
	}
}

// tuiControls adds the canvas resize the TUI needs to the controller.
type tuiControls struct {
	*live.Controller
	loop   *frame.Loop
	canvas *waveform.Text
}

func (c tuiControls) Resize(cols, rows int) {
	c.loop.Post(func() { c.canvas.Resize(cols, rows) })
}

func runTUI(ctx context.Context, a *app) error {
	canvas := waveform.NewText(a.cfg.Waveform.Width, a.cfg.Waveform.Height, 80, waveRows)
	sink := &tuiSink{canvas: canvas}
	a.ctrl = live.New(ctx, a.loop, a.deps(canvas, sink))

	program := NewTUIProgram(newTUIModel(tuiControls{a.ctrl, a.loop, canvas}, a.opts.autoStop))
	sink.program.Store(program)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.loop.Run(loopCtx)
	a.start(loopCtx)

	go func() {
		<-ctx.Done()
		program.Quit()
	}()
	_, err := program.Run()
	a.ctrl.Shutdown()
	if errors.Is(err, tea.ErrProgramKilled) {
		err = nil
	}
	return err
}
