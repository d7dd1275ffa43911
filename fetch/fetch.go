package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/wippyai/scanx-wasm/engine"
	"github.com/wippyai/scanx-wasm/errors"
	"github.com/wippyai/scanx-wasm/store"
)

// MaxBinarySize bounds a downloaded engine binary
const MaxBinarySize = 64 << 20

// Fetcher implements engine.Fetcher
type Fetcher struct {
	client    *http.Client
	store     store.Store
	log       *zap.Logger
	mirrorDir string
	timeout   time.Duration
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithClient sets the HTTP client. Defaults to http.DefaultClient.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithStore caches verified binaries in s
func WithStore(s store.Store) Option {
	return func(f *Fetcher) { f.store = s }
}

// WithTimeout bounds each download. 0 means no limit beyond ctx.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// WithMirrorDir writes every downloaded binary to dir/<variant>/<file>,
// the layout development mode reads from
func WithMirrorDir(dir string) Option {
	return func(f *Fetcher) { f.mirrorDir = dir }
}

// WithLogger sets the logger. Defaults to the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// New creates a Fetcher
func New(opts ...Option) *Fetcher {
	f := &Fetcher{client: http.DefaultClient}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = engine.Logger()
	}
	return f
}

// Fetch returns the binary for v at location, from the store when a
// verified copy is cached
func (f *Fetcher) Fetch(ctx context.Context, location string, v engine.Variant) ([]byte, error) {
	key := store.Key(v.Name, cacheID(location, v))

	if f.store != nil {
		data, err := f.store.Get(ctx, key)
		switch {
		case err == nil:
			if verr := verify(location, v, data); verr == nil {
				f.log.Debug("engine binary from cache", zap.String("variant", v.Name), zap.String("key", key))
				return data, nil
			}
			f.log.Debug("cached engine binary failed verification", zap.String("key", key))
			if err := f.store.Delete(ctx, key); err != nil {
				return nil, errors.Load("evict cached binary", err)
			}
		case !stderrors.Is(err, store.ErrNotFound):
			return nil, errors.Load("read binary cache", err)
		}
	}

	data, err := f.load(ctx, location)
	if err != nil {
		return nil, err
	}
	if err := verify(location, v, data); err != nil {
		return nil, err
	}
	f.log.Debug("engine binary fetched",
		zap.String("variant", v.Name),
		zap.String("location", location),
		zap.Int("bytes", len(data)))

	if f.store != nil {
		if err := f.store.Put(ctx, key, data); err != nil {
			return nil, errors.Load("write binary cache", err)
		}
	}
	if f.mirrorDir != "" {
		path := filepath.Join(f.mirrorDir, v.Name, v.File)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Load("create mirror directory", err)
		}
		if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
			return nil, errors.Load("mirror "+path, err)
		}
	}
	return data, nil
}

func (f *Fetcher) load(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return f.download(ctx, location)
		case "file":
			return readFile(u.Path)
		}
	}
	return readFile(location)
}

func (f *Fetcher) download(ctx context.Context, location string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.Load("build request for "+location, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Load("GET "+location, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NotFound(errors.PhaseLoad, "engine binary", location)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Load(fmt.Sprintf("GET %s: %s", location, resp.Status), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBinarySize+1))
	if err != nil {
		return nil, errors.Load("read "+location, err)
	}
	if len(data) > MaxBinarySize {
		return nil, errors.Load(fmt.Sprintf("%s exceeds %d bytes", location, MaxBinarySize), nil)
	}
	return data, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NotFound(errors.PhaseLoad, "engine binary", path)
	}
	if err != nil {
		return nil, errors.Load("read "+path, err)
	}
	return data, nil
}

// Sum returns the hex sha256 of data
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func verify(location string, v engine.Variant, data []byte) error {
	if v.SHA256 == "" {
		return nil
	}
	if got := Sum(data); !strings.EqualFold(got, v.SHA256) {
		return errors.Integrity(location, strings.ToLower(v.SHA256), got)
	}
	return nil
}

func cacheID(location string, v engine.Variant) string {
	if v.SHA256 != "" {
		return strings.ToLower(v.SHA256)
	}
	return Sum([]byte(location))
}

var _ engine.Fetcher = (*Fetcher)(nil)
