// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Gridworks Labs

package microlink

import (
	"errors"
	"sync"
	"time"
)

// Transport is the byte pipe the engine polls. ReadWithin collects whatever
// arrives inside the timeout window and may return fewer bytes than a full
// frame, or none at all. The engine is the transport's sole user once the
// poll loop starts.
type Transport interface {
	Write(p []byte) error
	ReadWithin(timeout time.Duration) ([]byte, error)
}

// Mailbox results.
var (
	// ErrNotCommandMode is returned when submitting before the challenge
	// exchange has granted write access.
	ErrNotCommandMode = errors.New("microlink: not in command mode")
	// ErrCommandPending is returned when another command is already queued.
	ErrCommandPending = errors.New("microlink: a command is already pending")
	// ErrConnectionLost is returned to a blocked submitter when the engine
	// falls back to INIT before the command could be transmitted.
	ErrConnectionLost = errors.New("microlink: connection lost")
	// ErrStopped is returned to a blocked submitter when the engine shuts
	// down.
	ErrStopped = errors.New("microlink: engine stopped")
)

// EventKind discriminates engine events.
type EventKind int

// Event kinds.
const (
	EventStateChange EventKind = iota
	EventMessage
)

// Event is a notification from the poll loop. Events are advisory: the
// channel is bounded and the engine drops events rather than stall the
// protocol cadence.
type Event struct {
	Kind  EventKind
	State CommState
	MsgID uint8
	Valid bool
	Msg   *Message // set for EventMessage; immutable after decode
}

type pendingCmd struct {
	frame []byte
	done  chan error
}

// Comm runs the Microlink connection state machine. One goroutine owns the
// transport and all DeviceState mutation; other goroutines interact through
// Submit, Snapshot, State and Events.
type Comm struct {
	transport Transport
	timeout   time.Duration

	mu        sync.RWMutex
	state     CommState
	online    bool
	st        *DeviceState

	// Loop-owned, never touched from outside the poll goroutine.
	prevState CommState
	next      []byte
	inflight  *pendingCmd

	commands chan *pendingCmd
	events   chan Event

	statsMu sync.Mutex
	stats   *Statistics

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewComm creates an engine over the given transport. A non-positive
// timeout selects the protocol default of 250 ms; tests shorten it.
func NewComm(t Transport, timeout time.Duration) *Comm {
	if timeout <= 0 {
		timeout = RcvTimeout
	}
	return &Comm{
		transport: t,
		timeout:   timeout,
		state:     StateInit,
		prevState: StateInit,
		st:        newDeviceState(),
		next:      []byte{ctrlNext},
		commands:  make(chan *pendingCmd, 1),
		events:    make(chan Event, 64),
		stats:     NewStatistics(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the poll loop.
func (c *Comm) Start() {
	go c.run()
}

// Stop asks the loop to finish and waits for it. Shutdown latency is at
// most one receive window.
func (c *Comm) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// State returns the current connection state.
func (c *Comm) State() CommState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Online reports the externally-visible connection status. It flips only on
// state transitions, not every cycle.
func (c *Comm) Online() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// Snapshot returns a deep copy of the device state.
func (c *Comm) Snapshot() DeviceState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.clone()
}

// Stats returns a copy of the cycle statistics with rates recalculated.
func (c *Comm) Stats() Statistics {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats.CalculateRates()
	return *c.stats
}

// bumpStats applies a counter update under the statistics lock.
func (c *Comm) bumpStats(f func(*Statistics)) {
	c.statsMu.Lock()
	f(c.stats)
	c.stats.LastUpdateTime = time.Now()
	c.statsMu.Unlock()
}

// Events returns the engine's notification channel.
func (c *Comm) Events() <-chan Event {
	return c.events
}

// Submit schedules a command frame for transmission and blocks until the
// poll loop has sent it. Commands are only honored in MODE1; a submission
// in any other state is rejected synchronously, and a second submission
// while one is outstanding fails with ErrCommandPending. A submitter is
// released with ErrConnectionLost if the connection drops first.
func (c *Comm) Submit(frame []byte) error {
	if c.State() != StateMode1 {
		return ErrNotCommandMode
	}
	pc := &pendingCmd{frame: frame, done: make(chan error, 1)}
	select {
	case c.commands <- pc:
	default:
		return ErrCommandPending
	}
	select {
	case err := <-pc.done:
		return err
	case <-c.done:
		return ErrStopped
	}
}

// run is the poll loop: write, read within the window, decode, transition.
// Strictly sequential; each cycle is bounded by the receive timeout.
func (c *Comm) run() {
	defer func() {
		c.failInflight(ErrStopped)
		c.drainCommands(ErrStopped)
		close(c.done)
	}()

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		switch c.state {
		case StateInit:
			c.write(cmdInit)
			if c.handle(c.receive()) {
				c.setState(StateMode0)
			} else {
				c.setState(StateInitReset)
			}

		case StateInitReset:
			// Recovery backoff before asking for a sweep reset.
			if !c.pause(resetBackoff) {
				return
			}
			c.write([]byte{ctrlReset})
			if c.handle(c.receive()) {
				c.setState(StateMode0)
			} else {
				c.setState(StateInit)
			}

		case StateMode0:
			c.write(c.next)
			if !c.handle(c.receive()) {
				c.setState(StateInit)
			}

		case StateMode1:
			c.takeCommand()
			werr := c.write(c.next)
			raw := c.receive()
			// The slot resets to keep-alive after each exchange; the
			// submitter learns whether the transport took the frame.
			c.failInflight(werr)
			c.next = []byte{ctrlNext}
			if !c.handle(raw) {
				c.setState(StateInit)
			}
		}

		c.observeTransition()
		if c.state != StateMode1 {
			c.drainCommands(ErrNotCommandMode)
		}
	}
}

// handle decodes a response and steers the next control byte. Returns false
// when the exchange failed badly enough to restart the handshake.
func (c *Comm) handle(raw []byte) bool {
	c.bumpStats(func(s *Statistics) { s.TotalExchanges++ })
	msg := DecodeFrame(raw)
	if msg == nil {
		c.bumpStats(func(s *Statistics) { s.Timeouts++ })
		c.next = []byte{ctrlReset}
		return false
	}
	if !msg.Valid() {
		// Integrity failure is not fatal: ask the device to re-emit
		// its previous message instead of tearing the session down.
		c.bumpStats(func(s *Statistics) { s.ChecksumErrors++ })
		c.emit(Event{Kind: EventMessage, MsgID: msg.ID(), Valid: false, Msg: msg})
		c.next = []byte{ctrlBack}
		return true
	}

	c.mu.Lock()
	c.st.Apply(msg)
	c.mu.Unlock()
	c.bumpStats(func(s *Statistics) {
		s.ValidFrames++
		s.LastMessageID = msg.ID()
	})
	c.emit(Event{Kind: EventMessage, MsgID: msg.ID(), Valid: true, Msg: msg})

	if msg.ID() == MsgHandshake && c.state == StateMode0 {
		if !c.answerChallenge() {
			return false
		}
	}

	c.next = []byte{ctrlNext}
	return true
}

// answerChallenge computes and transmits the challenge response, then
// checks that the device's immediate reply acknowledges it. Called when the
// handshake terminal message arrives in MODE0.
func (c *Comm) answerChallenge() bool {
	challenge, err := c.st.challenge()
	if err != nil {
		return false
	}
	frame := EncodeFrame(MsgPassword, challengeOffset, challenge)
	if c.write(frame) != nil {
		return false
	}
	reply := c.receive()
	if len(reply) > 0 && reply[0] == MsgPassword {
		c.setState(StateMode1)
		return true
	}
	return false
}

func (c *Comm) write(p []byte) error {
	return c.transport.Write(p)
}

func (c *Comm) receive() []byte {
	data, err := c.transport.ReadWithin(c.timeout)
	if err != nil {
		return nil
	}
	return data
}

func (c *Comm) setState(s CommState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// observeTransition updates the online flag and releases any queued
// submitter exactly when the state changes.
func (c *Comm) observeTransition() {
	if c.state == c.prevState {
		return
	}
	c.mu.Lock()
	c.online = c.state.Online()
	c.mu.Unlock()
	c.bumpStats(func(s *Statistics) { s.StateChanges++ })
	if c.prevState == StateMode1 {
		c.drainCommands(ErrConnectionLost)
	}
	c.emit(Event{Kind: EventStateChange, State: c.state})
	c.prevState = c.state
}

// takeCommand swaps a queued command frame into the send slot.
func (c *Comm) takeCommand() {
	select {
	case pc := <-c.commands:
		c.inflight = pc
		c.next = pc.frame
	default:
	}
}

func (c *Comm) failInflight(err error) {
	if c.inflight != nil {
		c.inflight.done <- err
		c.inflight = nil
	}
}

func (c *Comm) drainCommands(err error) {
	for {
		select {
		case pc := <-c.commands:
			pc.done <- err
		default:
			return
		}
	}
}

// pause sleeps unless the engine is stopped first.
func (c *Comm) pause(d time.Duration) bool {
	select {
	case <-c.stop:
		return false
	case <-time.After(d):
		return true
	}
}

func (c *Comm) emit(e Event) {
	select {
	case c.events <- e:
	default:
	}
}
