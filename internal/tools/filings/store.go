package filings

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"advisor/internal/adapters/edgar"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

// Forms searched for risk disclosures: the annual report and the latest current report.
var Forms = []string{"10-K", "8-K"}

// Source locates and downloads filings.
type Source interface {
	LatestFilings(ctx context.Context, ticker string, forms ...string) ([]edgar.Filing, error)
	Download(ctx context.Context, f edgar.Filing, w io.Writer) error
}

// Document is one downloaded filing on disk.
type Document struct {
	Form string
	Name string
	Path string
}

// Store downloads filings into a per-ticker scratch directory that lives
// only for the duration of one tool call.
type Store struct {
	source Source
	root   string
	log    *logger.Logger

	locks sync.Map // ticker -> *sync.Mutex
}

// NewStore creates a store rooted at root (e.g. ./sec_filings_temp).
func NewStore(source Source, root string) *Store {
	if root == "" {
		root = "./sec_filings_temp"
	}
	return &Store{
		source: source,
		root:   root,
		log:    logger.Get().With("component", "sec_filings"),
	}
}

// ScratchDir is the download directory for a ticker in this process. It is
// always a direct child of the store root.
func (s *Store) ScratchDir(ticker string) (string, error) {
	name := fmt.Sprintf("%s_%d", ticker, os.Getpid())
	if ticker == "" || strings.ContainsAny(ticker, `/\`) || strings.Contains(ticker, "..") {
		return "", errors.NewValidationError("ticker", "not usable as a directory name", ticker)
	}

	dir := filepath.Join(s.root, name)
	if rel, err := filepath.Rel(s.root, dir); err != nil || rel != name {
		return "", errors.NewValidationError("ticker", "escapes the filing directory", ticker)
	}
	return dir, nil
}

// WithFilings downloads the latest filings for ticker, hands them to fn and
// removes the scratch directory on every path. Calls for the same ticker are
// serialized because they share the directory.
func (s *Store) WithFilings(ctx context.Context, ticker string, fn func(docs []Document) error) error {
	if s.source == nil {
		return errors.Wrap(errors.ErrConfig, "SEC filing source not configured")
	}

	dir, err := s.ScratchDir(ticker)
	if err != nil {
		return err
	}

	mu, _ := s.locks.LoadOrStore(ticker, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.log.Warnw("Could not clean up filing directory", "dir", dir, "error", err)
		}
	}()

	filings, err := s.source.LatestFilings(ctx, ticker, Forms...)
	if err != nil {
		return err
	}

	var lastErr error
	for _, f := range filings {
		if err := s.download(ctx, dir, f); err != nil {
			// One missing form still leaves the others searchable.
			s.log.Warnw("Could not download filing", "ticker", ticker, "form", f.Form, "accession", f.AccessionNumber, "error", err)
			lastErr = err
		}
	}

	docs, err := collect(dir)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		if lastErr != nil {
			return lastErr
		}
		return errors.Wrapf(errors.ErrNotFound, "no %s filings found for %s", strings.Join(Forms, " or "), ticker)
	}

	return fn(docs)
}

func (s *Store) download(ctx context.Context, dir string, f edgar.Filing) error {
	formDir := filepath.Join(dir, formSlug(f.Form))
	if err := os.MkdirAll(formDir, 0o755); err != nil {
		return errors.Wrapf(errors.ErrInternal, "create %s: %v", formDir, err)
	}

	path := filepath.Join(formDir, f.AccessionNumber+".txt")
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(errors.ErrInternal, "create filing file: %v", err)
	}

	err = s.source.Download(ctx, f, file)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = errors.Wrapf(errors.ErrInternal, "write filing file: %v", cerr)
	}
	if err != nil {
		// A partial document must not be searched.
		_ = os.Remove(path)
	}
	return err
}

// collect finds every downloaded *.txt below dir.
func collect(dir string) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".txt") {
			return nil
		}
		docs = append(docs, Document{
			Form: formFromPath(path),
			Name: d.Name(),
			Path: path,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "scan filings: %v", err)
	}
	return docs, nil
}

func formSlug(form string) string {
	return strings.ToLower(strings.ReplaceAll(form, "/", "_"))
}

func formFromPath(path string) string {
	p := strings.ToLower(filepath.ToSlash(path))
	switch {
	case strings.Contains(p, "/10-k/"):
		return "10-K"
	case strings.Contains(p, "/8-k/"):
		return "8-K"
	default:
		return "Unknown"
	}
}
