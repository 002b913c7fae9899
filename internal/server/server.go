package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"camfs/internal/control"
	"camfs/internal/handler"
	"camfs/internal/middleware"
	"camfs/internal/model"
	"camfs/internal/volatile"
)

// BasePathMax bounds the base path a server is started with. Longer paths
// are cut at the last whole rune that fits.
const BasePathMax = 255

// DefaultTimeoutRequest bounds capture and delete requests when Options
// leaves TimeoutRequest unset.
const DefaultTimeoutRequest = 60 * time.Second

const (
	StreamRoute  = `/image-stream`
	CaptureRoute = `/capture`
)

type Options struct {
	Label       string
	Addr        string
	BasePath    string
	Compression int

	TimeoutIdle    time.Duration
	TimeoutRead    time.Duration
	TimeoutRequest time.Duration
	TimeoutWrite   time.Duration

	// Handler carries the responder tunables and collaborators. BasePath,
	// Logger and Metrics are filled in by Start.
	Handler handler.Context
	Logger  *volatile.Logger

	// Registerer receives the request and stream metrics; nil disables them.
	Registerer prometheus.Registerer
}

// Manager owns at most one running server.
type Manager struct {
	mu     sync.Mutex
	handle *Handle

	registered prometheus.Registerer
	metrics    *handler.Metrics
	instrument func(http.Handler) http.Handler
}

// Handle is a running server returned by Start.
type Handle struct {
	manager  *Manager
	label    string
	context  *handler.Context
	server   *http.Server
	listener net.Listener
	logger   control.Logger
	done     chan struct{}
	once     sync.Once
	err      error
}

func NewManager() *Manager {
	return &Manager{}
}

// Start binds opts.Addr and serves the camera file routes on it.
func (manager *Manager) Start(ctx context.Context, opts Options) (*Handle, error) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if manager.handle != nil {
		return nil, fmt.Errorf(`%w: %s on %s`, model.ErrAlreadyRunning, manager.handle.label, manager.handle.Addr())
	}
	if opts.Label == `` {
		opts.Label = `http`
	}
	if opts.Logger == nil {
		opts.Logger = volatile.NewLogger(control.DefaultLogLevel)
	}
	if opts.TimeoutRequest <= 0 {
		opts.TimeoutRequest = DefaultTimeoutRequest
	}
	manager.collectors(opts)

	c := opts.Handler
	c.BasePath = truncate(opts.BasePath, BasePathMax)
	c.Logger = opts.Logger
	c.Metrics = manager.metrics
	c.Defaults()
	if c.Volume == nil || c.Camera == nil {
		return nil, fmt.Errorf(`%w: a volume and a camera are required`, model.ErrStartFailed)
	}

	listener, err := (&net.ListenConfig{}).Listen(ctx, `tcp`, opts.Addr)
	if err != nil {
		return nil, fmt.Errorf(`%w: %w`, model.ErrStartFailed, err)
	}

	handle := &Handle{
		manager: manager,
		label:   opts.Label,
		context: &c,
		server: &http.Server{
			Handler:      manager.routes(&c, opts),
			ErrorLog:     log.New(control.NewHttpLogWriter(opts.Logger), ``, 0),
			IdleTimeout:  opts.TimeoutIdle,
			ReadTimeout:  opts.TimeoutRead,
			WriteTimeout: opts.TimeoutWrite,
		},
		listener: listener,
		logger:   opts.Logger,
		done:     make(chan struct{}),
	}
	manager.handle = handle

	go handle.serve()
	opts.Logger.Info(`%s.up http://%s/ base %s`, handle.label, handle.Addr(), c.BasePath)
	return handle, nil
}

// Stop stops the running server, if any.
func (manager *Manager) Stop(ctx context.Context) error {
	manager.mu.Lock()
	handle := manager.handle
	manager.mu.Unlock()
	if handle == nil {
		return nil
	}
	return handle.Stop(ctx)
}

// Running reports the live handle or nil.
func (manager *Manager) Running() *Handle {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return manager.handle
}

// collectors builds the metric collectors once per Manager so that a restart
// does not register them twice.
func (manager *Manager) collectors(opts Options) {
	if manager.metrics != nil && manager.registered == opts.Registerer {
		return
	}
	manager.registered = opts.Registerer
	manager.metrics = handler.NewMetrics(opts.Registerer)
	manager.instrument = nil
	if opts.Registerer != nil {
		manager.instrument = middleware.Prometheus(opts.Label, opts.Registerer)
	}
}

func (manager *Manager) routes(c *handler.Context, opts Options) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Standard(opts.Label, volatile.NewLogFormatter(opts.Label, opts.Logger), opts.Logger)...)
	router.NotFound(handler.Cocytus)
	router.MethodNotAllowed(handler.Verboten)

	router.Get(StreamRoute, c.Stream)
	router.Group(func(router chi.Router) {
		router.Use(middleware.Bounded(opts.TimeoutRequest, opts.Compression)...)
		if manager.instrument != nil {
			router.Use(manager.instrument)
		}
		router.Post(CaptureRoute, c.Capture)
		router.Post(handler.DeletePrefix+`/*`, c.Delete)
	})
	// Downloads run as long as the client keeps reading; each chunk gets
	// its own write deadline instead.
	router.Group(func(router chi.Router) {
		router.Use(middleware.Bounded(0, opts.Compression)...)
		if manager.instrument != nil {
			router.Use(manager.instrument)
		}
		router.Get(`/*`, c.Download)
	})
	return router
}

func (handle *Handle) serve() {
	defer close(handle.done)
	err := handle.server.Serve(handle.listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		handle.err = err
		handle.logger.Error(`%s.serve error: %s`, handle.label, err)
		return
	}
	handle.logger.Info(`%s.down`, handle.label)
}

func (handle *Handle) Addr() string {
	return handle.listener.Addr().String()
}

// Context is the responder state the server was started with.
func (handle *Handle) Context() *handler.Context {
	return handle.context
}

// Stop shuts the server down gracefully until ctx expires and then closes
// every remaining connection. It frees the Manager for the next Start and
// may be called more than once.
func (handle *Handle) Stop(ctx context.Context) error {
	var err error
	handle.once.Do(func() {
		if err = handle.server.Shutdown(ctx); err != nil {
			handle.logger.Warn(`%s.shutdown: %s`, handle.label, err)
			handle.server.Close()
		}
		<-handle.done

		handle.manager.mu.Lock()
		if handle.manager.handle == handle {
			handle.manager.handle = nil
		}
		handle.manager.mu.Unlock()
	})
	return err
}

// Done is closed once the server has stopped serving.
func (handle *Handle) Done() <-chan struct{} {
	return handle.done
}

// Err is the serve error that stopped the server, if any. Valid after Done.
func (handle *Handle) Err() error {
	return handle.err
}

func truncate(base string, max int) string {
	if len(base) <= max {
		return base
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(base[cut]) {
		cut--
	}
	return base[:cut]
}
