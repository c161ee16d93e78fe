// ABOUTME: Speaker application orchestration
// ABOUTME: Owns the output device and TUI, and runs utterances or the HTTP server on them
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/zenkiosk/kiosk-speaker/internal/config"
	"github.com/zenkiosk/kiosk-speaker/internal/server"
	"github.com/zenkiosk/kiosk-speaker/internal/ui"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio/decode"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio/output"
	"github.com/zenkiosk/kiosk-speaker/pkg/playback"
)

// statsInterval is how often the TUI is refreshed with counters
const statsInterval = 250 * time.Millisecond

// updateBacklog is how many TUI updates may wait for the TUI's event loop
// before new ones are dropped
const updateBacklog = 64

// msgSender is the part of tea.Program updates are delivered through
type msgSender interface {
	Send(msg tea.Msg)
}

// Options selects the output device and UI
type Options struct {
	DryRun bool
	UseTUI bool

	// Device overrides the device chosen by DryRun
	Device output.Device
}

// OpenFunc opens the encoded stream for one utterance
type OpenFunc func(ctx context.Context) (io.ReadCloser, error)

// Player represents the speaker application
type Player struct {
	cfg    *config.Config
	device output.Device

	tuiProg  *tea.Program
	controls *ui.Controls
	tuiDone  chan struct{}

	updates     chan ui.StatusMsg
	stopUpdates chan struct{}
	updatesDone chan struct{}

	logger *log.Logger
}

// New opens the output device and, when enabled, starts the TUI
func New(cfg *config.Config, opts Options) (*Player, error) {
	device := opts.Device
	if device == nil {
		var err error
		device, err = openDevice(cfg, opts.DryRun)
		if err != nil {
			return nil, err
		}
	}

	p := &Player{
		cfg:    cfg,
		device: device,
		logger: log.WithPrefix("app"),
	}

	if opts.UseTUI {
		p.controls = ui.NewControls()
		p.tuiProg = ui.Run(p.controls)
		p.tuiDone = make(chan struct{})
		go func() {
			defer close(p.tuiDone)
			if _, err := p.tuiProg.Run(); err != nil {
				p.logger.Error("TUI exited", "error", err)
			}
		}()
		p.startUpdates(p.tuiProg)
	}

	return p, nil
}

// startUpdates relays queued status messages to sink on their own
// goroutine, so session callbacks never wait on the TUI
func (p *Player) startUpdates(sink msgSender) {
	p.updates = make(chan ui.StatusMsg, updateBacklog)
	p.stopUpdates = make(chan struct{})
	p.updatesDone = make(chan struct{})

	go func() {
		defer close(p.updatesDone)
		for {
			select {
			case <-p.stopUpdates:
				return
			case msg := <-p.updates:
				sink.Send(msg)
			}
		}
	}()
}

func openDevice(cfg *config.Config, dryRun bool) (output.Device, error) {
	if dryRun {
		return output.NewNull(1), nil
	}

	oc := output.DefaultOtoConfig()
	oc.SampleRate = cfg.Audio.DeviceSampleRate
	oc.Channels = cfg.Audio.DeviceChannels
	oc.Volume = cfg.Audio.Volume

	device, err := output.NewOto(oc)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}
	return device, nil
}

// Play runs one utterance to completion on the device. Cancelling ctx, or
// pressing c in the TUI, stops it and returns context.Canceled.
func (p *Player) Play(ctx context.Context, text string, open OpenFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := uuid.NewString()
	p.update(ui.StatusMsg{SessionID: id, Text: text})

	decoder, err := decode.New(p.cfg.Format())
	if err != nil {
		return err
	}
	defer decoder.Close()

	var formatShown bool
	sc := p.cfg.SessionConfig()
	sc.OnStateChange = func(from, to playback.State) {
		p.update(ui.StatusMsg{SessionID: id, State: &to})
	}
	sc.OnPlay = func(buf audio.Buffer) {
		if formatShown {
			return
		}
		formatShown = true
		p.update(formatStatus(id, buf.Format))
	}
	session := playback.NewSession(sc, p.device, decoder)

	stop := make(chan struct{})
	defer close(stop)
	go p.watchSession(session, id, cancel, stop)

	body, err := open(ctx)
	if err != nil {
		p.update(ui.StatusMsg{SessionID: id, Err: err})
		return err
	}
	defer body.Close()

	err = session.Run(ctx, body)
	st := session.Status()
	p.update(ui.StatusMsg{SessionID: id, Stats: &st, Err: ignoreCanceled(err)})
	return err
}

// watchSession relays counters to the TUI and the cancel key to the session
func (p *Player) watchSession(session *playback.Session, id string, cancel context.CancelFunc, stop <-chan struct{}) {
	if p.tuiProg == nil {
		return
	}

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-p.controls.Cancel:
			p.logger.Info("Cancel requested from TUI", "session", id)
			cancel()
		case <-p.controls.Quit:
			cancel()
			// leave the request for Wait
			p.controls.Quit <- struct{}{}
			return
		case <-ticker.C:
			st := session.Status()
			p.update(ui.StatusMsg{SessionID: id, Stats: &st})
		}
	}
}

// Serve runs the HTTP server on the device until ctx is done or the TUI quits
func (p *Player) Serve(ctx context.Context, src server.Source) error {
	cfg := p.cfg
	srv := server.New(server.Config{
		Port:       cfg.Server.Port,
		Name:       cfg.ServiceName(),
		EnableMDNS: cfg.Server.MDNS,
		Session:    cfg.SessionConfig(),
		NewDecoder: func() (decode.Decoder, error) { return decode.New(cfg.Format()) },
		OnEvent:    p.relayEvent,
	}, src, p.device)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		var cancelReq, quitReq <-chan struct{}
		if p.controls != nil {
			cancelReq, quitReq = p.controls.Cancel, p.controls.Quit
		}
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				srv.Stop()
				return
			case <-quitReq:
				srv.Stop()
				return
			case <-cancelReq:
				srv.Cancel()
			case <-ticker.C:
				if p.updates != nil {
					p.update(serverStats(srv.Status()))
				}
			}
		}
	}()

	return srv.Start()
}

func (p *Player) relayEvent(ev server.Event) {
	msg := ui.StatusMsg{SessionID: ev.Session, Text: ev.Text}
	if st, ok := playback.ParseState(ev.To); ok && ev.Type == server.EventState {
		msg.State = &st
	}
	if ev.Error != "" {
		msg.Err = errors.New(ev.Error)
	}
	p.update(msg)
}

// Wait blocks until the TUI is quit or ctx is done. Without a TUI it
// returns at once.
func (p *Player) Wait(ctx context.Context) {
	if p.tuiProg == nil {
		return
	}
	select {
	case <-p.controls.Quit:
	case <-p.tuiDone:
	case <-ctx.Done():
	}
}

// Close shuts the TUI down and releases the device
func (p *Player) Close() error {
	if p.tuiProg != nil {
		// Quit first: it unblocks a Send in flight
		p.tuiProg.Quit()
		<-p.tuiDone
	}
	if p.updates != nil {
		close(p.stopUpdates)
		<-p.updatesDone
	}
	if err := p.device.Close(); err != nil {
		return fmt.Errorf("failed to close device: %w", err)
	}
	return nil
}

// update queues msg for the TUI without blocking. When the TUI falls a
// full backlog behind, msg is dropped; the next stats tick catches up.
func (p *Player) update(msg ui.StatusMsg) {
	if p.updates == nil {
		return
	}
	select {
	case p.updates <- msg:
	default:
		p.logger.Debug("TUI backlog full, dropping update", "session", msg.SessionID)
	}
}

func formatStatus(id string, f audio.Format) ui.StatusMsg {
	return ui.StatusMsg{
		SessionID:  id,
		Codec:      f.Codec,
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
		BitDepth:   f.BitDepth,
	}
}

func serverStats(st server.StatusResponse) ui.StatusMsg {
	stats := &playback.Status{
		Received:  st.Received,
		Played:    st.Played,
		Dropped:   st.Dropped,
		Underruns: st.Underruns,
		Failed:    st.Failed,
		Queued:    st.Queued,
	}
	return ui.StatusMsg{SessionID: st.Session, Stats: stats}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
