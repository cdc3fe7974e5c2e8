package engine

import (
	"context"
	"errors"
	"sync"

	"mergetool/buffer"
	"mergetool/logger"
	"mergetool/metrics"
	"mergetool/session"
	"mergetool/tracker"
	"mergetool/types"

	"github.com/neovim/go-client/nvim"
)

var errNoConnection = errors.New("no nvim connection")

// TextFactory returns the result text for a buffer number
type TextFactory func(n *nvim.Nvim, bufnr int) (tracker.Text, error)

type EngineConfig struct {
	NsID        int
	DiffOptions types.DiffOptions // defaults for requests that omit options
	NewText     TextFactory       // nil means Neovim buffers
}

// Engine serves the merge RPC methods. Requests are handled one at a time.
type Engine struct {
	n        *nvim.Nvim
	config   EngineConfig
	sessions *session.Registry
	metrics  *metrics.Tracker
	mu       sync.Mutex

	mainCtx    context.Context
	mainCancel context.CancelFunc
	stopped    bool
	stopOnce   sync.Once
}

func NewEngine(config EngineConfig) (*Engine, error) {
	if err := config.DiffOptions.Validate(); err != nil {
		return nil, err
	}
	if config.NewText == nil {
		config.NewText = nvimText(config.NsID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		config:     config,
		sessions:   session.NewRegistry(),
		metrics:    metrics.NewTracker(),
		mainCtx:    ctx,
		mainCancel: cancel,
	}, nil
}

// nvimText uses Neovim buffers with extmarks in namespace nsID
func nvimText(nsID int) TextFactory {
	return func(n *nvim.Nvim, bufnr int) (tracker.Text, error) {
		if n == nil {
			return nil, errNoConnection
		}
		buf := buffer.New(buffer.Config{NsID: nsID}, bufnr)
		buf.SetClient(n)
		return buf, nil
	}
}

func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.mainCancel()
	e.mainCtx, e.mainCancel = context.WithCancel(ctx)
	logger.Info("engine started")
}

// Stop closes every open session and refuses further requests
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		logger.Info("stopping engine...")
		e.stopped = true
		e.mainCancel()
		for _, s := range e.sessions.All() {
			if err := s.Close(); err != nil {
				logger.Warn("closing session %s: %v", s.ID, err)
			}
			e.sessions.Remove(s.ID)
		}
		logger.Info("engine stopped")
	})
}

// Metrics returns the engine's counters
func (e *Engine) Metrics() *metrics.Tracker {
	return e.metrics
}

// SetNvim switches the engine to a new connection and registers the RPC
// methods on it
func (e *Engine) SetNvim(n *nvim.Nvim) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	e.n = n

	handlers := map[string]any{
		"mergetool_compute_diff": func(before, after []string, opts any) (map[string]any, error) {
			return e.ComputeDiff(before, after, opts)
		},
		"mergetool_open": func(bufnr int, base, left, right []string, opts any) (map[string]any, error) {
			return e.Open(bufnr, base, left, right, opts)
		},
		"mergetool_refresh": func(id string) (map[string]any, error) {
			return e.Refresh(id)
		},
		"mergetool_resolve": func(id string, index int, action string) (map[string]any, error) {
			return e.Resolve(id, index, action)
		},
		"mergetool_next": func(id string, line int) (int, error) {
			return e.Next(id, line)
		},
		"mergetool_prev": func(id string, line int) (int, error) {
			return e.Prev(id, line)
		},
		"mergetool_close": func(id string) error {
			return e.Close(id)
		},
		"mergetool_stats": func() (map[string]any, error) {
			return e.Stats()
		},
	}
	for name, fn := range handlers {
		if err := n.RegisterHandler(name, fn); err != nil {
			logger.Error("error registering handler %s for new connection: %v", name, err)
		}
	}
}

// lock takes the request lock, failing once the engine is stopped. The
// caller must unlock.
func (e *Engine) lock() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return errors.New("engine stopped")
	}
	return nil
}

// fail logs and counts a failed request
func (e *Engine) fail(method string, err error) error {
	e.metrics.Track(metrics.EventRequestFailed, 1)
	if errors.Is(err, types.ErrInvalidInput) || errors.Is(err, types.ErrUnknownSession) {
		logger.Debug("%s: %v", method, err)
	} else {
		logger.Error("%s: %v", method, err)
	}
	return err
}
