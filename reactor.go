package reactor

import (
	"errors"
	"net"
	"os"
	"sync"

	"github.com/indigo-web/reactor/config"
	"github.com/indigo-web/reactor/http"
	"github.com/indigo-web/reactor/http/status"
	httpserver "github.com/indigo-web/reactor/internal/server/http"
	"github.com/indigo-web/reactor/internal/server/metrics"
	loop "github.com/indigo-web/reactor/internal/server/reactor"
	"github.com/indigo-web/reactor/internal/server/tcp"
	"github.com/indigo-web/reactor/router"
	"github.com/indigo-web/reactor/router/simple"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// App wires listeners, the event loop and a router together. All the listeners are served
// by a single event loop running in the goroutine that called Serve.
type App struct {
	addrs      []string
	cfg        *config.Config
	logger     zerolog.Logger
	registerer prometheus.Registerer
	// metrics are registered once and reused by every Serve.
	metrics    *metrics.Metrics
	hooks      hooks

	mu       sync.Mutex
	reactor  *loop.Reactor
	bound    []net.Addr
	stopping bool
}

// New returns a new App instance listening at the address.
func New(addr string) *App {
	return &App{
		addrs:  []string{addr},
		cfg:    config.Default(),
		logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
}

// Listen adds one more address to listen at.
func (a *App) Listen(addr string) *App {
	a.addrs = append(a.addrs, addr)
	return a
}

// Tune replaces the default config.
func (a *App) Tune(cfg *config.Config) *App {
	a.cfg = cfg
	return a
}

// Logger replaces the default logger, which writes JSON lines into stderr.
func (a *App) Logger(logger zerolog.Logger) *App {
	a.logger = logger
	return a
}

// Metrics enables metrics, registering them in the registerer.
func (a *App) Metrics(reg prometheus.Registerer) *App {
	a.registerer = reg
	a.metrics = nil
	return a
}

// NotifyOnStart calls the callback at the moment, when all the listeners are bound. Connections
// can already be established, but they'll be accepted only after the callback returns.
func (a *App) NotifyOnStart(cb func()) *App {
	a.hooks.OnStart = cb
	return a
}

// NotifyOnStop calls the callback at the moment, when the event loop is down. It's guaranteed,
// that at the moment as the callback is called, all the listeners and clients are closed and
// Serve may be called again.
func (a *App) NotifyOnStop(cb func()) *App {
	a.hooks.OnStop = cb
	return a
}

// Serve binds all the listeners and runs the event loop until Stop is called, in which case
// status.ErrShutdown is returned. If nil is passed instead of a router, every request is
// responded with an empty 200 OK.
func (a *App) Serve(r router.Router) error {
	if r == nil {
		r = simple.New(func(*http.Request) *http.Response {
			return http.NewResponse()
		}, nil)
	}

	listeners, err := a.listen()
	if err != nil {
		return err
	}

	if a.registerer != nil && a.metrics == nil {
		a.metrics = metrics.New(a.registerer)
	}

	reactor, err := loop.New(a.cfg, httpserver.NewServer(a.cfg, r), a.logger, a.metrics, listeners)
	if err != nil {
		closeAll(listeners)
		return err
	}

	a.mu.Lock()
	a.reactor = reactor
	a.bound = reactor.Addrs()
	stopping := a.stopping
	a.mu.Unlock()

	if stopping {
		_ = reactor.Stop()
	}

	for _, addr := range a.bound {
		a.logger.Info().Stringer("addr", addr).Msg("listening")
	}

	callIfNotNil(a.hooks.OnStart)
	err = reactor.Run()

	if errors.Is(err, status.ErrShutdown) {
		a.logger.Info().Msg("stopped")
	}

	a.mu.Lock()
	a.reactor = nil
	a.bound = nil
	a.stopping = false
	a.mu.Unlock()

	callIfNotNil(a.hooks.OnStop)

	return err
}

// Stop stops the application. The call isn't blocking, so after the method returned,
// the server may still be shutting down. Calling Stop before Serve stops the next
// Serve immediately.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.reactor == nil {
		a.stopping = true
		return
	}

	if err := a.reactor.Stop(); err != nil {
		a.logger.Error().Err(err).Msg("failed to wake the event loop up")
	}
}

// Addrs returns the addresses all the listeners are bound to. It's empty while the
// application isn't serving.
func (a *App) Addrs() []net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.bound
}

func (a *App) listen() ([]*tcp.Listener, error) {
	listeners := make([]*tcp.Listener, 0, len(a.addrs))

	for _, addr := range a.addrs {
		l, err := tcp.Listen(addr, a.cfg.NET.ListenBacklog)
		if err != nil {
			closeAll(listeners)
			return nil, err
		}

		listeners = append(listeners, l)
	}

	return listeners, nil
}

func closeAll(listeners []*tcp.Listener) {
	for _, l := range listeners {
		_ = l.Close()
	}
}

type hooks struct {
	OnStart, OnStop func()
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}
