package reactor

import (
	"errors"
	"io"
	"net"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/indigo-web/reactor/config"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/reactor/internal/server/conn"
	"github.com/indigo-web/reactor/internal/server/metrics"
	"github.com/indigo-web/reactor/internal/server/poll"
	"github.com/indigo-web/reactor/internal/server/tcp"
	"github.com/rs/zerolog"
)

// Handler processes complete messages extracted from connections.
type Handler interface {
	// HandleMessage returns the rendered response. If an error is returned, or closeAfter
	// is set, the connection is closed after the response is written.
	HandleMessage(message []byte, remote net.Addr) (response []byte, closeAfter bool, err error)
	// HandleError renders the response to a protocol error.
	HandleError(err error) []byte
}

// Reactor multiplexes all the listeners and client connections over a single
// level-triggered readiness poller. Everything except Stop must be called from the
// goroutine running Run.
type Reactor struct {
	cfg       *config.Config
	handler   Handler
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	poller    *poll.Poller
	listeners map[int]*tcp.Listener
	// paused listeners are valid, yet temporarily unregistered after an accept failure.
	paused    []*tcp.Listener
	// broken listeners failed to be rebuilt and are retried periodically.
	broken    []*tcp.Listener
	lastRetry time.Time
	registry  *Registry
	readBuff  []byte
	events    []poll.Event
	stopped   atomic.Bool
	now       func() time.Time
}

// New creates the poller and registers the listeners in it. The reactor takes ownership
// of the listeners, so they're closed when Run returns. Metrics may be nil.
func New(
	cfg *config.Config,
	handler Handler,
	logger zerolog.Logger,
	m *metrics.Metrics,
	listeners []*tcp.Listener,
) (*Reactor, error) {
	poller, err := poll.New(cfg.Reactor.MaxEvents)
	if err != nil {
		return nil, err
	}

	r := &Reactor{
		cfg:       cfg,
		handler:   handler,
		logger:    logger,
		metrics:   m,
		poller:    poller,
		listeners: make(map[int]*tcp.Listener, len(listeners)),
		registry:  NewRegistry(),
		readBuff:  make([]byte, cfg.NET.ReadBufferSize),
		events:    make([]poll.Event, 0, cfg.Reactor.MaxEvents),
		now:       time.Now,
	}

	for _, l := range listeners {
		if err = poller.Add(l.FD()); err != nil {
			_ = poller.Close()
			return nil, err
		}

		r.listeners[l.FD()] = l
	}

	return r, nil
}

// Run runs the event loop until Stop is called or the poller fails. In the former case
// status.ErrShutdown is returned. All the connections and listeners are closed on return.
func (r *Reactor) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer r.shutdown()

	lastSweep := r.now()

	for {
		events, err := r.poller.Wait(r.timeout(), r.events[:0])
		if err != nil {
			r.logger.Error().Err(err).Msg("poller failed")
			return err
		}

		r.events = events
		for _, ev := range events {
			switch {
			case ev.Wakeup:
			case r.listeners[ev.FD] != nil:
				r.onListener(r.listeners[ev.FD], ev)
			default:
				if entry, ok := r.registry.Get(ev.FD); ok {
					r.onClient(entry, ev)
				}
			}
		}

		if r.stopped.Load() {
			return status.ErrShutdown
		}

		now := r.now()
		if r.cfg.NET.ReadTimeout > 0 && now.Sub(lastSweep) >= r.period() {
			r.sweep(now)
			lastSweep = now
		}

		if r.dormant() && now.Sub(r.lastRetry) >= r.period() {
			r.revive()
		}
	}
}

// timeout bounds the poll wait while there's periodic work: idle connections to sweep or
// listeners to bring back.
func (r *Reactor) timeout() time.Duration {
	if r.cfg.NET.ReadTimeout > 0 || r.dormant() {
		return r.period()
	}

	return -1
}

func (r *Reactor) period() time.Duration {
	if r.cfg.NET.IdleSweepPeriod <= 0 {
		return time.Second
	}

	return r.cfg.NET.IdleSweepPeriod
}

// Stop interrupts Run. It's safe to be called from any goroutine.
func (r *Reactor) Stop() error {
	r.stopped.Store(true)
	return r.poller.Wake()
}

// Addrs returns the addresses of all the listeners, including those awaiting a rebuild.
func (r *Reactor) Addrs() []net.Addr {
	addrs := make([]net.Addr, 0, len(r.listeners)+len(r.broken))
	for _, l := range r.listeners {
		addrs = append(addrs, l.Addr())
	}

	for _, l := range r.broken {
		addrs = append(addrs, l.Addr())
	}

	return addrs
}

func (r *Reactor) onListener(l *tcp.Listener, ev poll.Event) {
	if ev.Error || ev.Hangup {
		r.rebuild(l)
		return
	}

	for {
		client, err := l.Accept(r.readBuff)
		switch {
		case err == nil:
		case errors.Is(err, tcp.ErrWouldBlock):
			return
		default:
			// the pending connection stays in the backlog, so with level-triggered polling
			// the listener would be reported again right away
			r.metrics.OnAcceptFailure()
			r.logger.Warn().Err(err).Stringer("addr", l.Addr()).Msg("failed to accept a connection, pausing the listener")
			r.pause(l)
			return
		}

		if err = r.poller.Add(client.FD()); err != nil {
			_ = client.Close()
			r.metrics.OnAcceptFailure()
			r.logger.Warn().Err(err).Msg("failed to register a connection")
			continue
		}

		entry := &Entry{
			Client:     client,
			Conn:       conn.New(r.cfg),
			LastActive: r.now(),
		}
		r.registry.Add(client.FD(), entry)
		r.metrics.OnAccept()
		r.logger.Debug().
			Str("conn", entry.Conn.ID()).
			Int("fd", client.FD()).
			Stringer("remote", client.Remote()).
			Msg("accepted")
	}
}

// rebuild replaces a failed listener by a new one bound to the same address. If that's
// impossible right now, it's retried periodically.
func (r *Reactor) rebuild(l *tcp.Listener) {
	r.forget(l)

	if err := l.Rebuild(); err != nil {
		r.logger.Error().Err(err).Stringer("addr", l.Addr()).Msg("failed to rebuild a listener, retrying later")
		r.markBroken(l)
		return
	}

	if err := r.poller.Add(l.FD()); err != nil {
		_ = l.Close()
		r.logger.Error().Err(err).Stringer("addr", l.Addr()).Msg("failed to register a rebuilt listener, retrying later")
		r.markBroken(l)
		return
	}

	r.listeners[l.FD()] = l
	r.metrics.OnRebuild()
	r.logger.Warn().Stringer("addr", l.Addr()).Msg("listener rebuilt")
}

// forget drops every trace of the listener. It's looked up by identity, as its descriptor
// may already be invalid.
func (r *Reactor) forget(l *tcp.Listener) {
	for fd, other := range r.listeners {
		if other == l {
			_ = r.poller.Remove(fd)
			delete(r.listeners, fd)
		}
	}

	r.paused = slices.DeleteFunc(r.paused, func(other *tcp.Listener) bool {
		return other == l
	})
}

func (r *Reactor) markBroken(l *tcp.Listener) {
	r.broken = append(r.broken, l)
	r.lastRetry = r.now()
}

// pause unregisters the listener until the next retry. It stays among the listeners.
func (r *Reactor) pause(l *tcp.Listener) {
	if err := r.poller.Remove(l.FD()); err != nil {
		r.rebuild(l)
		return
	}

	r.paused = append(r.paused, l)
	r.lastRetry = r.now()
}

// dormant reports whether any listener is paused or broken.
func (r *Reactor) dormant() bool {
	return len(r.paused)+len(r.broken) > 0
}

// revive registers paused listeners back and retries rebuilding broken ones.
func (r *Reactor) revive() {
	paused, broken := r.paused, r.broken
	r.paused, r.broken = nil, nil
	r.lastRetry = r.now()

	for _, l := range paused {
		if err := r.poller.Add(l.FD()); err != nil {
			r.rebuild(l)
			continue
		}

		r.logger.Info().Stringer("addr", l.Addr()).Msg("listener resumed")
	}

	for _, l := range broken {
		r.rebuild(l)
	}
}

func (r *Reactor) onClient(entry *Entry, ev poll.Event) {
	if ev.Error {
		r.close(entry)
		return
	}

	if ev.Writable {
		r.flush(entry)
		return
	}

	if ev.Readable && !entry.Writing {
		r.read(entry)
		return
	}

	if ev.Hangup {
		r.close(entry)
	}
}

func (r *Reactor) read(entry *Entry) {
	data, err := entry.Client.Read()
	switch {
	case err == nil:
	case errors.Is(err, tcp.ErrWouldBlock):
		return
	case errors.Is(err, io.EOF):
		if perr := entry.Conn.EOF(); perr != nil {
			r.reject(entry, perr)
			return
		}

		r.close(entry)
		return
	default:
		r.close(entry)
		return
	}

	r.metrics.OnRead(len(data))
	entry.LastActive = r.now()
	r.feed(entry, data)
}

// feed passes the data to the connection and dispatches every complete message. It stops
// as soon as a response can't be written at once, the rest is resumed after flushing.
func (r *Reactor) feed(entry *Entry, data []byte) {
	state, err := entry.Conn.Feed(data)

	for err == nil && state == conn.Ready {
		response, closeAfter, herr := r.handler.HandleMessage(entry.Conn.Extract(), entry.Client.Remote())
		if herr != nil {
			r.onProtocolError(entry, herr)
		} else {
			r.metrics.OnRequest()
		}

		if !r.write(entry, response) {
			return
		}

		if closeAfter {
			r.closeAfterFlush(entry)
			return
		}

		if entry.Writing {
			return
		}

		state, err = entry.Conn.Feed(nil)
	}

	if err != nil {
		r.reject(entry, err)
	}
}

func (r *Reactor) flush(entry *Entry) {
	if err := entry.Client.Flush(); err != nil {
		r.close(entry)
		return
	}

	entry.LastActive = r.now()
	if entry.Client.Pending() {
		return
	}

	if entry.Closing {
		r.close(entry)
		return
	}

	if err := r.poller.Modify(entry.Client.FD(), false); err != nil {
		r.close(entry)
		return
	}

	entry.Writing = false
	// pipelined messages might have been left unprocessed
	r.feed(entry, nil)
}

// write queues the data. It returns false if the connection was closed due to an error.
func (r *Reactor) write(entry *Entry, data []byte) bool {
	if err := entry.Client.Write(data); err != nil {
		r.close(entry)
		return false
	}

	r.metrics.OnWrite(len(data))
	if entry.Client.Pending() && !entry.Writing {
		if err := r.poller.Modify(entry.Client.FD(), true); err != nil {
			r.close(entry)
			return false
		}

		entry.Writing = true
	}

	return true
}

// reject responds to a protocol violation and closes the connection.
func (r *Reactor) reject(entry *Entry, err error) {
	r.onProtocolError(entry, err)
	if r.write(entry, r.handler.HandleError(err)) {
		r.closeAfterFlush(entry)
	}
}

func (r *Reactor) onProtocolError(entry *Entry, err error) {
	r.metrics.OnProtocolError(err)
	r.logger.Debug().
		Err(err).
		Str("conn", entry.Conn.ID()).
		Int("fd", entry.Client.FD()).
		Stringer("remote", entry.Client.Remote()).
		Uint16("code", uint16(status.FromError(err).Code)).
		Msg("protocol error")
}

func (r *Reactor) closeAfterFlush(entry *Entry) {
	if entry.Client.Pending() {
		entry.Closing = true
		return
	}

	r.close(entry)
}

// close tears the connection down. It's a no-op if the connection is already closed.
func (r *Reactor) close(entry *Entry) {
	fd := entry.Client.FD()
	if _, found := r.registry.Remove(fd); !found {
		return
	}

	_ = r.poller.Remove(fd)
	_ = entry.Client.Close()
	entry.Conn.Close()
	r.metrics.OnClose()
	r.logger.Debug().
		Str("conn", entry.Conn.ID()).
		Int("fd", fd).
		Msg("closed")
}

// sweep closes connections that have been idle for longer than the read timeout. If a
// request was received partially, the peer is notified by 408 Request Timeout.
func (r *Reactor) sweep(now time.Time) {
	for _, entry := range r.registry.All() {
		if now.Sub(entry.LastActive) < r.cfg.NET.ReadTimeout {
			continue
		}

		r.metrics.OnIdleTimeout()
		if entry.Conn.Pending() && !entry.Writing {
			// best-effort, whatever isn't written at once is discarded
			_ = entry.Client.Write(r.handler.HandleError(status.ErrRequestTimeout))
		}

		r.close(entry)
	}
}

func (r *Reactor) shutdown() {
	for _, entry := range r.registry.All() {
		r.close(entry)
	}

	for fd, l := range r.listeners {
		_ = r.poller.Remove(fd)
		_ = l.Close()
		delete(r.listeners, fd)
	}

	for _, l := range r.broken {
		_ = l.Close()
	}

	r.paused, r.broken = nil, nil

	_ = r.poller.Close()
}
