// Package tray runs the relay under a system tray icon.
package tray

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getlantern/systray"

	"kmrelay/internal/relay"
)

// Relay is the part of the dispatcher the tray controls.
type Relay interface {
	Pause(paused bool)
	Paused() bool
	Stats() relay.Stats
}

// Tray manages the system tray icon and menu
type Tray struct {
	relay  Relay
	listen string
	onQuit func()
	logger *slog.Logger

	pauseItem *systray.MenuItem
	quitCh    chan struct{}
}

// New creates a tray for r. onQuit runs when the user picks Quit.
func New(r Relay, listen string, onQuit func(), logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{
		relay:  r,
		listen: listen,
		onQuit: onQuit,
		logger: logger,
		quitCh: make(chan struct{}),
	}
}

// Run starts the tray event loop. It blocks and must be called from the
// main goroutine on macOS.
func (t *Tray) Run() {
	systray.Run(t.setupMenu, func() { close(t.quitCh) })
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTitle("kmrelay")
	systray.SetIcon(getIcon())
	systray.SetTooltip(tooltip(t.listen, t.relay.Stats(), t.relay.Paused()))

	t.pauseItem = systray.AddMenuItem("Pause forwarding", "Drop commands instead of writing them to the controller")
	if t.relay.Paused() {
		t.pauseItem.Check()
	}
	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Stop the relay")

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-ticker.C:
				systray.SetTooltip(tooltip(t.listen, t.relay.Stats(), t.relay.Paused()))
			case <-t.quitCh:
				return
			}
		}
	}()
}

// togglePause flips forwarding and keeps the menu check mark in sync.
func (t *Tray) togglePause() {
	paused := !t.relay.Paused()
	t.relay.Pause(paused)
	t.logger.Info("Tray: forwarding toggled", slog.Bool("paused", paused))

	if t.pauseItem == nil {
		return
	}
	if paused {
		t.pauseItem.Check()
	} else {
		t.pauseItem.Uncheck()
	}
}

func tooltip(listen string, st relay.Stats, paused bool) string {
	state := "forwarding"
	if paused {
		state = "paused"
	}
	return fmt.Sprintf("kmrelay %s on %s\n%d forwarded, %d rejected", state, listen, st.Forwarded, st.Rejected)
}

// getIcon returns a blank 16x16 32-bit ICO.
func getIcon() []byte {
	const (
		pixels = 16 * 16 * 4
		mask   = 16 * 4
		dib    = 40
	)
	icon := make([]byte, 6+16+dib+pixels+mask)

	// ICONDIR: reserved, type 1, one image
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// ICONDIRENTRY: 16x16, 32bpp, size, offset 22
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x68, 0x04, 0x00, 0x00,
		0x16, 0x00, 0x00, 0x00,
	})
	// BITMAPINFOHEADER, height doubled for the AND mask
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00,
		0x10, 0x00, 0x00, 0x00,
		0x20, 0x00, 0x00, 0x00,
		0x01, 0x00,
		0x20, 0x00,
	})
	return icon
}
