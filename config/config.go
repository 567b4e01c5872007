// Package config loads transcribo.yaml and shell-style env files.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "TRANSCRIBO_CONFIG"
	EnvServiceURL = "TRANSCRIBO_SERVICE_URL"
	FileName      = "transcribo.yaml"
)

type Service struct {
	URL string `yaml:"url"`
	// Timeout is in seconds.
	Timeout int `yaml:"timeout"`
}

type Recognition struct {
	Engine   string `yaml:"engine"`
	Language string `yaml:"language"`
	Model    string `yaml:"model"`
	// Command runs the line engine.
	Command []string `yaml:"command"`
}

type Translation struct {
	TargetLanguage string `yaml:"target_language"`
}

type Audio struct {
	Device     string `yaml:"device"`
	SampleRate int    `yaml:"sample_rate"`
}

type Waveform struct {
	FPS    int `yaml:"fps"`
	Bars   int `yaml:"bars"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Root struct {
	Service     Service     `yaml:"service"`
	Recognition Recognition `yaml:"recognition"`
	Translation Translation `yaml:"translation"`
	Audio       Audio       `yaml:"audio"`
	Waveform    Waveform    `yaml:"waveform"`
	Log         struct {
		Path string `yaml:"path"`
	} `yaml:"log"`

	// Path is the file the values came from, empty for defaults.
	Path string `yaml:"-"`
}

func Default() *Root {
	return &Root{
		Service:     Service{URL: "http://localhost:5000", Timeout: 60},
		Recognition: Recognition{Engine: "deepgram", Language: "en-US", Model: "nova-3"},
		Translation: Translation{TargetLanguage: "Spanish"},
		Audio:       Audio{SampleRate: 16000},
		Waveform:    Waveform{FPS: 60, Bars: 64, Width: 800, Height: 120},
	}
}

// Guesses lists the places Load looks when no path is given, in order.
func Guesses() []string {
	var guess []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		guess = append(guess, p)
	}
	guess = append(guess, FileName)
	if dir, err := os.UserConfigDir(); err == nil {
		guess = append(guess, filepath.Join(dir, "transcribo", FileName))
	}
	return guess
}

// Load reads path, or the first existing guess when path is empty. Missing
// files yield the defaults; a file that exists but does not parse is an
// error. Values left out of the file keep their defaults.
func Load(path string) (*Root, error) {
	cfg := Default()
	paths := []string{path}
	if path == "" {
		paths = Guesses()
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == "" {
				continue
			}
			return nil, fmt.Errorf("open config: %w", err)
		}
		err = yaml.NewDecoder(f).Decode(cfg)
		f.Close()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		cfg.Path = p
		break
	}
	if u := os.Getenv(EnvServiceURL); u != "" {
		cfg.Service.URL = u
	}
	cfg.fill()
	return cfg, nil
}

func (r *Root) fill() {
	d := Default()
	if r.Service.URL == "" {
		r.Service.URL = d.Service.URL
	}
	if r.Service.Timeout <= 0 {
		r.Service.Timeout = d.Service.Timeout
	}
	if r.Recognition.Engine == "" {
		r.Recognition.Engine = d.Recognition.Engine
	}
	if r.Audio.SampleRate <= 0 {
		r.Audio.SampleRate = d.Audio.SampleRate
	}
	if r.Waveform.FPS <= 0 {
		r.Waveform.FPS = d.Waveform.FPS
	}
	if r.Waveform.Bars <= 0 {
		r.Waveform.Bars = d.Waveform.Bars
	}
	if r.Waveform.Width <= 0 || r.Waveform.Height <= 0 {
		r.Waveform.Width, r.Waveform.Height = d.Waveform.Width, d.Waveform.Height
	}
}

func (r *Root) ServiceTimeout() time.Duration { return DurSeconds(r.Service.Timeout) }

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
