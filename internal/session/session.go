// Package session drives the CR35 connection lifecycle: the login
// handshake, the command-queue dispatcher tick, the acquisition timer, and
// routing of decoded responses into token resolution, state transitions, and
// the image stream parser. Everything that touches the receive buffer,
// image buffer, token table, or command queue runs on a single goroutine
// (the "engine context"); calls from other goroutines (Start, Stop,
// Disconnect) are marshalled in over a channel rather than sharing those
// fields directly, following the single-threaded cooperative dispatch
// adapted from the ticker+goroutine shape used for background listeners
// elsewhere in this driver family.
package session

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/zavinator/cr35drv/internal/proto"
	"github.com/zavinator/cr35drv/internal/syncutil"
	"github.com/zavinator/cr35drv/internal/transport"
)

// State is a snapshot of the device operational state, safe to read from
// any goroutine via Session.State.
type State struct {
	Value       uint32
	Started     bool
	WasScanning bool
}

// Handlers are optional callbacks invoked from the engine goroutine as
// events occur. A nil handler is simply skipped. Implementations must not
// block for long or call back into the Session synchronously.
type Handlers struct {
	Connected       func()
	Disconnected    func()
	Error           func(err error)
	Started         func()
	Stopped         func()
	FrameReady      func(*proto.Frame)
	NewDataReceived func()
	ModeListUpdated func([]string)
}

type ctrlKind int

const (
	ctrlStart ctrlKind = iota
	ctrlStop
)

type ctrlMsg struct {
	kind ctrlKind
	mode uint32
}

// Session owns one CR35 device connection. Create with New, then Connect.
type Session struct {
	addr     string
	handlers Handlers

	ctrlCh    chan ctrlMsg
	stopAckCh chan struct{}
	doneCh    chan struct{}
	cancel    context.CancelFunc

	snapMu   syncutil.RWMutex
	state    State
	modeList []string

	dumpMu syncutil.Mutex
	dumpW  io.Writer
}

// New returns a Session targeting addr (host:port), not yet connected.
func New(addr string, h Handlers) *Session {
	return &Session{
		addr:      addr,
		handlers:  h,
		ctrlCh:    make(chan ctrlMsg, 4),
		stopAckCh: make(chan struct{}, 1),
	}
}

// SetImageDumpWriter installs a debug sink that receives every raw
// ImageData payload byte, in addition to normal processing. Pass nil to
// disable. Safe to call from any goroutine at any time.
func (s *Session) SetImageDumpWriter(w io.Writer) {
	s.dumpMu.Lock()
	defer s.dumpMu.Unlock()
	s.dumpW = w
}

func (s *Session) imageDumpWriter() io.Writer {
	s.dumpMu.Lock()
	defer s.dumpMu.Unlock()
	return s.dumpW
}

// State returns a snapshot of the current device state.
func (s *Session) State() State {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.state
}

// ModeList returns a snapshot of the most recently published mode list.
func (s *Session) ModeList() []string {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	out := make([]string, len(s.modeList))
	copy(out, s.modeList)
	return out
}

func (s *Session) publishState(st State) {
	s.snapMu.Lock()
	s.state = st
	s.snapMu.Unlock()
}

func (s *Session) publishModeList(list []string) {
	s.snapMu.Lock()
	s.modeList = list
	s.snapMu.Unlock()
}

// Connect dials the device and starts the engine goroutine. It returns once
// the TCP connection is established; handshake completion happens
// asynchronously and is not waited on.
func (s *Session) Connect(ctx context.Context) error {
	tr, err := transport.Dial(ctx, s.addr)
	if err != nil {
		return err
	}
	return s.connectWith(ctx, tr)
}

// connectWith is split out from Connect so tests can inject a fake
// transport without opening a real socket.
func (s *Session) connectWith(ctx context.Context, tr transport.Transport) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.doneCh = make(chan struct{})
	e := &engine{
		session:   s,
		transport: tr,
		tokens:    proto.NewTokenTable(),
		queue:     proto.NewCommandQueue(),
		state:     State{Value: proto.StateUnknown},
	}
	if _, err := rand.Read(e.clientID[:]); err != nil {
		cancel()
		tr.Close()
		return fmt.Errorf("generate client id: %w", err)
	}
	go e.run(runCtx, s.doneCh)
	return nil
}

// Start begins acquisition with the given device mode id, transitioning the
// device from Ready to Scanning.
func (s *Session) Start(mode uint32) {
	select {
	case s.ctrlCh <- ctrlMsg{kind: ctrlStart, mode: mode}:
	default:
	}
}

// Stop ends acquisition, transitioning the device toward Stopping.
func (s *Session) Stop() {
	select {
	case s.ctrlCh <- ctrlMsg{kind: ctrlStop}:
	default:
	}
}

// Disconnect stops acquisition if running, waits up to the disconnect-wait
// timeout for the device's stopped acknowledgement, then tears down the
// engine and transport. Safe to call when idle or already disconnected.
func (s *Session) Disconnect() {
	if s.cancel == nil {
		return
	}
	if s.State().Started {
		s.Stop()
		select {
		case <-s.stopAckCh:
		case <-time.After(proto.DisconnectWait):
		}
	}
	s.cancel()
	<-s.doneCh
}

// engine holds everything the protocol engine exclusively owns: the
// transport handle, both buffers, the token table, the command queue, and
// the in-flight slot. Every field is touched only from run's goroutine.
type engine struct {
	session   *Session
	transport transport.Transport

	clientID proto.ClientID
	tokens   *proto.TokenTable
	queue    *proto.CommandQueue

	recvBuf  []byte
	imageBuf []byte

	state State
}

func (e *engine) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	defer e.transport.Close()

	e.initialize()
	e.notify(e.session.handlers.Connected)

	commandTicker := time.NewTicker(proto.CommandQueueInterval)
	defer commandTicker.Stop()
	imageTimer := time.NewTimer(time.Hour)
	imageTimer.Stop()
	defer imageTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.notify(e.session.handlers.Disconnected)
			return

		case _, ok := <-e.transport.Notify():
			if !ok {
				e.notify(e.session.handlers.Disconnected)
				return
			}
			data, err := e.transport.Read()
			if err != nil {
				e.notifyErr(err)
				return
			}
			if len(data) > 0 {
				e.recvBuf = append(e.recvBuf, data...)
				e.drainBuffer(imageTimer)
			}

		case now := <-commandTicker.C:
			e.tick(now)

		case <-imageTimer.C:
			if e.state.Started {
				e.enqueue(proto.ReadData("SystemState"))
				e.enqueue(proto.ReadData("ImageData"))
			}

		case msg := <-e.session.ctrlCh:
			e.handleCtrl(msg, imageTimer)
		}
	}
}

func (e *engine) initialize() {
	e.recvBuf = nil
	e.imageBuf = nil
	e.state = State{Value: proto.StateUnknown}

	for _, name := range proto.TokenNames {
		if !e.tokens.Has(name) {
			e.enqueue(proto.ReadToken(name))
		}
	}
	e.enqueue(proto.CommandU16("Connect", 1))
	e.enqueue(proto.CommandString("UserId", "user@BACKUP"))
	e.enqueue(proto.CommandString("SystemDate", systemDateString(time.Now().UTC())))
	e.enqueue(proto.ReadData("ModeList"))
	e.enqueue(proto.ReadData("SystemState"))
}

// systemDateString formats t the way the device expects: "Mon, 02 Jan 2006
// 15:04:05 GMT".
func systemDateString(t time.Time) string {
	return t.Format("Mon, 02 Jan 2006 15:04:05 GMT")
}

func (e *engine) enqueue(c proto.Command) {
	e.queue.Enqueue(c)
}

func (e *engine) handleCtrl(msg ctrlMsg, imageTimer *time.Timer) {
	switch msg.kind {
	case ctrlStart:
		if e.state.Started {
			return
		}
		e.imageBuf = nil
		e.enqueue(proto.CommandU32("Mode", msg.mode))
		e.enqueue(proto.CommandU32("PollingOnly", 1))
		e.enqueue(proto.CommandU16("Start", 1))
	case ctrlStop:
		if !e.state.Started {
			return
		}
		imageTimer.Stop()
		e.enqueue(proto.CommandU16("StopRequest", 1))
		e.enqueue(proto.CommandU16("Stop", 1))
	}
}

func (e *engine) tick(now time.Time) {
	res := e.queue.Tick(now)
	if res.TimedOut {
		slog.Warn("command timed out")
	}
	if !res.Sent {
		return
	}
	wire, err := e.encode(res.Dequeued)
	if err != nil {
		slog.Error("encode command failed", "name", res.Dequeued.Name, "err", err)
		e.queue.ClearInFlight()
		return
	}
	if err := e.transport.Write(wire); err != nil {
		e.notifyErr(err)
		return
	}
	slog.Debug("sent packet", "name", res.Dequeued.Name, "kind", res.Dequeued.Kind)
}

func (e *engine) encode(c proto.Command) ([]byte, error) {
	switch c.Kind {
	case proto.KindReadToken:
		return proto.EncodeReadToken(c.Name, e.clientID), nil
	case proto.KindReadData:
		return proto.EncodeReadData(e.tokens.Lookup(c.Name), e.clientID), nil
	default:
		return proto.EncodeCommand(c, e.tokens.Lookup(c.Name))
	}
}

// drainBuffer inspects the receive buffer for one complete response and, if
// found, dispatches it and discards the entire buffer — the protocol only
// ever has one response in flight, so nothing is left over to process in a
// second pass.
func (e *engine) drainBuffer(imageTimer *time.Timer) {
	header, ok := proto.DecodeHeader(e.recvBuf, 0)
	if !ok {
		return
	}

	inFlight := e.queue.InFlight()
	if inFlight != nil && inFlight.Command.Kind == proto.KindReadToken {
		e.tokens.Set(inFlight.Command.Name, header.Token)
		e.queue.ClearInFlight()
		e.recvBuf = nil
		return
	}

	if !proto.Complete(e.recvBuf, header) {
		return
	}
	payload := proto.ExtractPayload(e.recvBuf, header)
	name := ""
	if inFlight != nil {
		name = inFlight.Command.Name
	}
	e.dispatch(name, payload, imageTimer)
	e.queue.ClearInFlight()
	e.recvBuf = nil
}

func (e *engine) dispatch(name string, payload []byte, imageTimer *time.Timer) {
	switch name {
	case "ModeList":
		list := proto.ParseModeList(payload)
		e.session.publishModeList(list)
		e.notify(func() {
			if e.session.handlers.ModeListUpdated != nil {
				e.session.handlers.ModeListUpdated(list)
			}
		})

	case "ImageData":
		if w := e.session.imageDumpWriter(); w != nil {
			w.Write(payload)
		}
		e.imageBuf = append(e.imageBuf, payload...)
		if len(payload) > 32 {
			e.notify(e.session.handlers.NewDataReceived)
		}
		if e.state.Value == proto.StateWaiting && e.state.WasScanning && e.imageEndReached() {
			e.flushImage()
		}
		if e.state.Started {
			imageTimer.Reset(proto.ImageDataInterval)
		}

	case "SystemState":
		if len(payload) != 4 {
			return
		}
		val := binary.BigEndian.Uint32(payload)
		e.state.Value = val
		e.session.publishState(e.state)
		switch val {
		case proto.StateScanning:
			e.state.WasScanning = true
		case proto.StateStopping:
			if e.state.WasScanning {
				e.flushImage()
			}
		}

	case "Start":
		e.state.Started = true
		e.session.publishState(e.state)
		e.notify(e.session.handlers.Started)
		imageTimer.Reset(proto.ImageDataInterval)

	case "Stop":
		e.state.Started = false
		e.session.publishState(e.state)
		e.notify(e.session.handlers.Stopped)
		e.enqueue(proto.ReadData("SystemState"))
		select {
		case e.session.stopAckCh <- struct{}{}:
		default:
		}

	default:
		if name != "" {
			slog.Debug("unhandled response", "name", name, "size", len(payload))
		}
	}
}

// imageEndReached reports whether ImageBuffer currently ends with the
// little-endian ImageEnd marker word (0xFFFB).
func (e *engine) imageEndReached() bool {
	n := len(e.imageBuf)
	if n < 2 {
		return false
	}
	return binary.LittleEndian.Uint16(e.imageBuf[n-2:]) == 0xFFFB
}

func (e *engine) flushImage() {
	if len(e.imageBuf) == 0 {
		e.state.WasScanning = false
		return
	}
	lines, info := proto.Parse(e.imageBuf)
	frame := proto.Rasterize(lines, info)
	e.imageBuf = nil
	e.state.WasScanning = false
	if frame != nil {
		e.notify(func() {
			if e.session.handlers.FrameReady != nil {
				e.session.handlers.FrameReady(frame)
			}
		})
	}
}

func (e *engine) notify(f func()) {
	if f != nil {
		f()
	}
}

func (e *engine) notifyErr(err error) {
	if e.session.handlers.Error != nil {
		e.session.handlers.Error(err)
	} else {
		slog.Error("session error", "err", err)
	}
}
