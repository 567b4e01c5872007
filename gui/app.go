//go:build gui

package gui

import (
	"image"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"transcribo/clipboard"
	"transcribo/enrich"
	"transcribo/live"
	"transcribo/recognition"
	"transcribo/view"
	"transcribo/waveform"
)

// Controls is what the window drives.
type Controls interface {
	Toggle()
	Translate()
	Enhance()
	Clear()
	SetTargetLanguage(lang string)
	SelectTab(t view.Tab)
	LoadFile(path string)
}

// App is the desktop window. It implements live.Sink; sink calls arrive on
// the frame loop and are handed to fyne with fyne.Do.
type App struct {
	fyneApp fyne.App
	window  fyne.Window
	raster  *waveform.Raster
	ctrl    Controls

	wave     *canvas.Image
	status   *widget.Label
	tabs     *widget.RadioGroup
	body     *widget.Label
	interim  *widget.Label
	notice   *widget.Label
	record   *widget.Button
	language *widget.Select

	// Read and written on the fyne goroutine only.
	tabOrder []view.Tab
	snap     live.Snapshot
}

func NewApp(raster *waveform.Raster) *App {
	return &App{raster: raster}
}

func (a *App) Bind(ctrl Controls) { a.ctrl = ctrl }

// Run builds the window and blocks until it closes. onReady runs once the
// widgets exist.
func Run(a *App, onReady func()) {
	a.fyneApp = app.NewWithID("io.transcribo.gui")
	a.fyneApp.Settings().SetTheme(&darkTheme{})
	a.fyneApp.SetIcon(fyne.NewStaticResource("icon.png", iconPNG()))

	a.window = a.fyneApp.NewWindow("transcribo")
	a.window.SetContent(a.build())
	w, h := a.raster.Size()
	a.window.Resize(fyne.NewSize(float32(w)+40, float32(h)+460))

	go onReady()
	a.window.ShowAndRun()
}

func (a *App) build() fyne.CanvasObject {
	w, h := a.raster.Size()
	a.wave = canvas.NewImageFromImage(a.raster.Image())
	a.wave.FillMode = canvas.ImageFillContain
	a.wave.ScaleMode = canvas.ImageScalePixels
	a.wave.SetMinSize(fyne.NewSize(float32(w), float32(h)))

	a.status = widget.NewLabel("○ STANDBY")
	a.notice = widget.NewLabel("")
	a.notice.Wrapping = fyne.TextWrapWord

	a.record = widget.NewButton("Record", func() { a.ctrl.Toggle() })
	a.record.Importance = widget.HighImportance
	translate := widget.NewButton("Translate", func() { a.ctrl.Translate() })
	enhance := widget.NewButton("Enhance", func() { a.ctrl.Enhance() })
	clearBtn := widget.NewButton("Clear", func() { a.ctrl.Clear() })
	copyBtn := widget.NewButton("Copy", a.copyActive)
	open := widget.NewButton("Open file…", a.openFile)

	a.language = widget.NewSelect(enrich.Languages, func(lang string) {
		if lang != a.snap.TargetLanguage {
			a.ctrl.SetTargetLanguage(lang)
		}
	})

	a.tabs = widget.NewRadioGroup(nil, a.selectTab)
	a.tabs.Horizontal = true

	a.body = widget.NewLabel("")
	a.body.Wrapping = fyne.TextWrapWord
	a.interim = widget.NewLabel("")
	a.interim.Wrapping = fyne.TextWrapWord
	a.interim.TextStyle = fyne.TextStyle{Italic: true}
	a.interim.Importance = widget.LowImportance

	top := container.NewVBox(
		a.status,
		a.wave,
		container.NewHBox(a.record, translate, enhance, clearBtn, copyBtn, open, widget.NewLabel("→"), a.language),
		a.tabs,
	)
	text := container.NewVScroll(container.NewVBox(a.body, a.interim))
	return container.NewBorder(top, a.notice, nil, nil, text)
}

func (a *App) selectTab(label string) {
	for _, t := range a.tabOrder {
		if view.Label(a.snap.Texts, t) == label && t != a.snap.Active {
			a.ctrl.SelectTab(t)
			return
		}
	}
}

func (a *App) copyActive() {
	text, _ := view.Body(a.snap.Texts, a.snap.Active)
	if err := clipboard.Copy(text); err != nil {
		a.showNotice(enrich.Notice{Level: enrich.Warning, Text: "Copy failed: " + err.Error()})
		return
	}
	a.showNotice(enrich.Notice{Level: enrich.Info, Text: "Copied " + view.Label(a.snap.Texts, a.snap.Active)})
}

func (a *App) openFile() {
	dialog.ShowFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil || r == nil {
			return
		}
		path := r.URI().Path()
		r.Close()
		a.ctrl.LoadFile(path)
	}, a.window)
}

func (a *App) Quit() {
	fyne.Do(func() {
		if a.fyneApp != nil {
			a.fyneApp.Quit()
		}
	})
}

// Changed implements live.Sink.
func (a *App) Changed(s live.Snapshot) {
	fyne.Do(func() { a.apply(s) })
}

// Notice implements live.Sink.
func (a *App) Notice(n enrich.Notice) {
	fyne.Do(func() { a.showNotice(n) })
}

// Frame implements live.Sink. The raster is copied because the loop draws
// the next frame while fyne paints this one.
func (a *App) Frame(float64) {
	src := a.raster.Image()
	img := image.NewRGBA(src.Rect)
	copy(img.Pix, src.Pix)
	fyne.Do(func() {
		if a.wave == nil {
			return
		}
		a.wave.Image = img
		a.wave.Refresh()
	})
}

func (a *App) apply(s live.Snapshot) {
	if a.status == nil {
		return
	}
	a.snap = s

	switch s.State {
	case recognition.Recording:
		a.status.SetText("● REC  " + s.Engine + "  mic: " + s.Device)
		a.record.SetText("Stop")
	case recognition.Stopped:
		a.status.SetText("■ STOPPED")
		a.record.SetText("Record")
	default:
		a.status.SetText("○ STANDBY")
		a.record.SetText("Record")
	}
	if s.RecErr != nil {
		a.record.Disable()
		a.status.SetText("Speech recognition unavailable")
	} else {
		a.record.Enable()
	}
	if s.LoadingFile != "" {
		a.status.SetText("Transcribing " + s.LoadingFile + "…")
	}
	if a.language.Selected != s.TargetLanguage {
		a.language.SetSelected(s.TargetLanguage)
	}

	a.tabOrder = s.Tabs
	labels := make([]string, len(s.Tabs))
	for i, t := range s.Tabs {
		labels[i] = view.Label(s.Texts, t)
	}
	a.tabs.Options = labels
	a.tabs.Selected = view.Label(s.Texts, s.Active)
	a.tabs.Refresh()

	text, interim := view.Body(s.Texts, s.Active)
	a.body.SetText(text)
	a.interim.SetText(interim)
}

func (a *App) showNotice(n enrich.Notice) {
	if a.notice == nil {
		return
	}
	switch n.Level {
	case enrich.Error:
		a.notice.Importance = widget.DangerImportance
	case enrich.Warning:
		a.notice.Importance = widget.WarningImportance
	default:
		a.notice.Importance = widget.SuccessImportance
	}
	a.notice.SetText(n.Text)
	text := n.Text
	time.AfterFunc(5*time.Second, func() {
		fyne.Do(func() {
			if a.notice.Text == text {
				a.notice.SetText("")
			}
		})
	})
}
