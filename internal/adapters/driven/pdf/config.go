package pdf

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

var (
	// ErrNotInitialized indicates Init has not been called
	ErrNotInitialized = errors.New("pdf: not initialized")

	// ErrAlreadyInitialized indicates Init was called twice without Shutdown
	ErrAlreadyInitialized = errors.New("pdf: already initialized")
)

// Config is the process-wide renderer configuration
type Config struct {
	// TempDir is where fetched documents are spooled (default: os.TempDir())
	TempDir string

	// FetchTimeout bounds a single document download
	FetchTimeout time.Duration

	// MaxBytes rejects documents larger than this
	MaxBytes int64

	// MaxPixels rejects renders whose raster would exceed this many pixels
	MaxPixels int

	// HTTPClient fetches documents (default: a client with FetchTimeout)
	HTTPClient *http.Client
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		FetchTimeout: 30 * time.Second,
		MaxBytes:     50 << 20,
		MaxPixels:    40_000_000,
	}
}

type renderState struct {
	cfg     Config
	workDir string
	client  *http.Client
}

var (
	stateMu sync.RWMutex
	state   *renderState
)

// Init sets up the process-wide renderer state. It must be called once at
// startup before any Loader is used, and paired with Shutdown.
func Init(cfg Config) error {
	stateMu.Lock()
	defer stateMu.Unlock()

	if state != nil {
		return ErrAlreadyInitialized
	}

	defaults := DefaultConfig()
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaults.FetchTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaults.MaxBytes
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = defaults.MaxPixels
	}

	workDir, err := os.MkdirTemp(cfg.TempDir, "feedback-pdf-")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}

	state = &renderState{cfg: cfg, workDir: workDir, client: client}
	return nil
}

// Shutdown removes every spooled document and resets the state.
// Calling it without Init is a no-op.
func Shutdown() error {
	stateMu.Lock()
	defer stateMu.Unlock()

	if state == nil {
		return nil
	}
	err := os.RemoveAll(state.workDir)
	state = nil
	if err != nil {
		return fmt.Errorf("remove work dir: %w", err)
	}
	return nil
}

func current() (*renderState, error) {
	stateMu.RLock()
	defer stateMu.RUnlock()
	if state == nil {
		return nil, ErrNotInitialized
	}
	return state, nil
}
