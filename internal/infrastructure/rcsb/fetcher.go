// Package rcsb downloads experimental structures from the RCSB PDB file
// service and caches them on local disk.
package rcsb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/pkg/errors"
)

// DownloadBaseURL is the RCSB file service endpoint.
const DownloadBaseURL = "https://files.rcsb.org/download"

// accessionPattern matches a PDB accession: four characters, the first a
// digit, the rest alphanumeric.
var accessionPattern = regexp.MustCompile(`^[0-9][A-Za-z0-9]{3}$`)

// ValidateAccession normalizes and checks a PDB accession code.  The
// normalized (upper-case) form is returned.
func ValidateAccession(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if !accessionPattern.MatchString(trimmed) {
		return "", errors.InvalidAccession(code)
	}
	return strings.ToUpper(trimmed), nil
}

// HTTPDoer abstracts the HTTP client for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type FetcherConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	CacheDir   string        `mapstructure:"cache_dir"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

func applyDefaults(cfg *FetcherConfig) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DownloadBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
}

// Fetcher downloads PDB entries with retry and an idempotent disk cache.
type Fetcher struct {
	config *FetcherConfig
	client HTTPDoer
	logger logging.Logger
}

func NewFetcher(cfg *FetcherConfig, log logging.Logger) *Fetcher {
	applyDefaults(cfg)
	return &Fetcher{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log,
	}
}

// NewFetcherWithClient injects a custom HTTP client, used by tests.
func NewFetcherWithClient(cfg *FetcherConfig, client HTTPDoer, log logging.Logger) *Fetcher {
	applyDefaults(cfg)
	return &Fetcher{config: cfg, client: client, logger: log}
}

// CachePath returns the local path a fetched accession lands at.
func (f *Fetcher) CachePath(accession string) string {
	return filepath.Join(f.config.CacheDir, strings.ToUpper(accession)+".pdb")
}

// Fetch downloads the PDB file for an accession and returns the cached local
// path.  The accession is validated before any network traffic.  A file
// already in the cache is returned without a download, so concurrent and
// repeated fetches of the same accession are idempotent.
func (f *Fetcher) Fetch(ctx context.Context, accession string) (string, error) {
	code, err := ValidateAccession(accession)
	if err != nil {
		return "", err
	}

	path := f.CachePath(code)
	if _, statErr := os.Stat(path); statErr == nil {
		f.logger.Debug("structure cache hit",
			logging.String("accession", code), logging.String("path", path))
		return path, nil
	}

	body, err := f.download(ctx, code)
	if err != nil {
		return "", err
	}

	if err := f.writeAtomic(path, body); err != nil {
		return "", err
	}
	f.logger.Info("structure fetched",
		logging.String("accession", code),
		logging.String("path", path),
		logging.Int("bytes", len(body)))
	return path, nil
}

// download performs the HTTP transfer with bounded retries.  Missing entries
// (404) and other client errors are terminal; network failures and 5xx
// responses retry with a fixed delay.
func (f *Fetcher) download(ctx context.Context, code string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s.pdb", f.config.BaseURL, code)

	var lastErr error
	for attempt := 0; attempt <= f.config.MaxRetries; attempt++ {
		if attempt > 0 {
			f.logger.Warn("retrying structure download",
				logging.String("accession", code),
				logging.Int("attempt", attempt),
				logging.Err(lastErr))
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "structure download cancelled")
			case <-time.After(f.config.RetryDelay * time.Duration(attempt)):
			}
		}

		body, retryable, err := f.attempt(ctx, url, code)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, errors.Wrap(lastErr, errors.ErrCodeServiceUnavailable,
		fmt.Sprintf("structure download failed after %d retries", f.config.MaxRetries))
}

func (f *Fetcher) attempt(ctx context.Context, url, code string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeInternal, "failed to build download request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "structure download cancelled")
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, true, readErr
		}
		return data, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, errors.StructureNotFound(code)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("rcsb returned status %d", resp.StatusCode)
	default:
		return nil, false, errors.New(errors.ErrCodeBadRequest,
			fmt.Sprintf("rcsb returned status %d for %s", resp.StatusCode, code))
	}
}

// writeAtomic lands the payload via a temp file and rename so a crashed
// download never leaves a truncated cache entry.
func (f *Fetcher) writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create cache directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write structure file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to close structure file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to finalize structure file")
	}
	return nil
}
