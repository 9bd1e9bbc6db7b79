// Package filesystem loads policy documents from local files and directories.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/logger"
)

// Verify interface compliance.
var _ driven.Connector = (*Connector)(nil)

// ConnectorType is the identifier reported by Type.
const ConnectorType = "filesystem"

// DefaultDebounce is how long the watcher waits for a path to go quiet
// before emitting a change.
const DefaultDebounce = 250 * time.Millisecond

const errBuffer = 16

// supportedExtensions maps loadable extensions to their MIME type.
var supportedExtensions = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".html": "text/html",
	".htm":  "text/html",
}

// Connector loads .txt, .md and .html files from a set of files or directories.
type Connector struct {
	roots    []string
	debounce time.Duration

	mu       sync.Mutex
	closed   bool
	watchers []*fsnotify.Watcher
}

// Option configures a Connector.
type Option func(*Connector)

// WithDebounce sets the watcher debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// New creates a connector over the given files or directories.
func New(paths []string, opts ...Option) *Connector {
	c := &Connector{
		roots:    make([]string, 0, len(paths)),
		debounce: DefaultDebounce,
	}
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			c.roots = append(c.roots, filepath.Clean(p))
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return ConnectorType
}

// Roots returns the configured paths.
func (c *Connector) Roots() []string {
	return append([]string(nil), c.roots...)
}

// Validate checks every configured path exists.
func (c *Connector) Validate(_ context.Context) error {
	if len(c.roots) == 0 {
		return fmt.Errorf("%w: no paths given", domain.ErrInvalidInput)
	}
	for _, root := range c.roots {
		if _, err := os.Stat(root); err != nil {
			return rootError(root, err)
		}
	}
	return nil
}

// FullSync walks every root and emits each loadable file.
// Hidden files and directories are skipped.
func (c *Connector) FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error, errBuffer)

	go func() {
		defer close(docs)
		defer close(errs)

		for _, root := range c.roots {
			if ctx.Err() != nil {
				return
			}
			if err := c.syncRoot(ctx, root, docs, errs); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				sendErr(ctx, errs, err)
			}
		}
	}()

	return docs, errs
}

func (c *Connector) syncRoot(ctx context.Context, root string, docs chan<- domain.RawDocument, errs chan<- error) error {
	info, err := os.Stat(root)
	if err != nil {
		return rootError(root, err)
	}

	if !info.IsDir() {
		if !isLoadable(root) {
			return fmt.Errorf("%w: %s is not a .txt, .md or .html file", domain.ErrUnsupportedType, root)
		}
		return emitFile(ctx, root, docs, errs)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			sendErr(ctx, errs, fmt.Errorf("walk %s: %w", path, walkErr))
			return nil
		}
		if path != root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isLoadable(path) {
			return nil
		}
		return emitFile(ctx, path, docs, errs)
	})
}

func emitFile(ctx context.Context, path string, docs chan<- domain.RawDocument, errs chan<- error) error {
	doc, err := readDocument(path)
	if err != nil {
		sendErr(ctx, errs, err)
		return nil
	}
	select {
	case docs <- doc:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch emits debounced changes under every root until ctx is cancelled.
// Writes to unseen files are reported as creations.
func (c *Connector) Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("connector is closed")
	}
	if len(c.roots) == 0 {
		return nil, fmt.Errorf("%w: no paths given", domain.ErrInvalidInput)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	st := &watchState{
		known: make(map[string]bool),
		files: make(map[string]bool),
	}
	for _, root := range c.roots {
		if err := st.addRoot(w, root); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	c.watchers = append(c.watchers, w)

	changes := make(chan domain.RawDocumentChange)
	go c.watchLoop(ctx, w, st, changes)

	return changes, nil
}

// watchState tracks which paths the watcher has already seen.
type watchState struct {
	// known holds loadable files that exist.
	known map[string]bool
	// files holds single-file roots; events in their parent
	// directory for other names are ignored.
	files map[string]bool
	// dirs holds watched directory roots.
	dirs []string
}

func (s *watchState) addRoot(w *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return rootError(root, err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		s.files[abs] = true
		s.known[abs] = true
		return w.Add(filepath.Dir(abs))
	}
	s.dirs = append(s.dirs, abs)
	return s.addTree(w, abs, nil)
}

// addTree watches dir and its visible subdirectories, recording files found.
// When found is non-nil the discovered files are appended to it.
func (s *watchState) addTree(w *fsnotify.Watcher, dir string, found *[]string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if addErr := w.Add(path); addErr != nil {
				return fmt.Errorf("watch %s: %w", path, addErr)
			}
			return nil
		}
		if isLoadable(path) {
			if found != nil && !s.known[path] {
				*found = append(*found, path)
			}
			s.known[path] = true
		}
		return nil
	})
}

// relevant reports whether an event path belongs to a configured root.
func (s *watchState) relevant(path string) bool {
	if s.files[path] {
		return true
	}
	for _, dir := range s.dirs {
		rel, err := filepath.Rel(dir, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if isHidden(part) {
				return false
			}
		}
		return true
	}
	return false
}

func (c *Connector) watchLoop(ctx context.Context, w *fsnotify.Watcher, st *watchState, out chan<- domain.RawDocumentChange) {
	defer close(out)
	defer c.releaseWatcher(w)

	pending := make(map[string]fsnotify.Op)
	timer := time.NewTimer(c.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			path := filepath.Clean(event.Name)
			if !st.relevant(path) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					var found []string
					if err := st.addTree(w, path, &found); err != nil {
						logger.Warn("watcher: %v", err)
					}
					for _, f := range found {
						pending[f] |= fsnotify.Create
					}
					timer.Reset(c.debounce)
					continue
				}
			}
			if !isLoadable(path) {
				continue
			}
			pending[path] |= event.Op
			timer.Reset(c.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher: %v", err)

		case <-timer.C:
			for path, op := range pending {
				change, emit := st.resolve(path, op)
				if !emit {
					continue
				}
				logger.Debug("watcher: %s %s", change.Type, path)
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
			clear(pending)
		}
	}
}

// resolve turns the accumulated ops for a path into a single change,
// using the file's current state on disk as the source of truth.
func (s *watchState) resolve(path string, op fsnotify.Op) (domain.RawDocumentChange, bool) {
	doc, err := readDocument(path)
	if err != nil {
		if !s.known[path] {
			// Created and removed inside one debounce window.
			return domain.RawDocumentChange{}, false
		}
		delete(s.known, path)
		return domain.RawDocumentChange{
			Type:     domain.ChangeDeleted,
			Document: deletedDocument(path),
		}, true
	}

	changeType := domain.ChangeUpdated
	if !s.known[path] || (op.Has(fsnotify.Create) && !op.Has(fsnotify.Write)) {
		changeType = domain.ChangeCreated
	}
	s.known[path] = true
	return domain.RawDocumentChange{Type: changeType, Document: doc}, true
}

func (c *Connector) releaseWatcher(w *fsnotify.Watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.watchers {
		if existing == w {
			c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
			break
		}
	}
	_ = w.Close()
}

// Close stops all active watchers. It is safe to call more than once.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for _, w := range c.watchers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.watchers = nil
	return errors.Join(errs...)
}

func readDocument(path string) (domain.RawDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.RawDocument{}, fmt.Errorf("read %s: %w", path, err)
	}
	return domain.RawDocument{
		URI:      URIFromPath(path),
		MIMEType: detectMIMEType(path),
		Content:  content,
		Metadata: map[string]any{
			domain.MetaDocumentID:   documentID(path),
			domain.MetaDocumentType: string(DocumentTypeFromPath(path)),
			"filename":              filepath.Base(path),
		},
	}, nil
}

func deletedDocument(path string) domain.RawDocument {
	return domain.RawDocument{
		URI: URIFromPath(path),
		Metadata: map[string]any{
			domain.MetaDocumentID: documentID(path),
		},
	}
}

// DocumentTypeFromPath infers the document type from a directory segment:
// "policies" yields policy, "faqs" yields faq, anything else general.
func DocumentTypeFromPath(path string) domain.DocumentType {
	dir := filepath.Dir(filepath.ToSlash(path))
	for _, segment := range strings.Split(filepath.ToSlash(dir), "/") {
		switch strings.ToLower(segment) {
		case "policies", "policy":
			return domain.DocumentTypePolicy
		case "faqs", "faq":
			return domain.DocumentTypeFAQ
		}
	}
	return domain.DocumentTypeGeneral
}

func documentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// detectMIMEType returns the MIME type for a loadable file, or
// application/octet-stream for anything else.
func detectMIMEType(path string) string {
	if mt, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "application/octet-stream"
}

func isLoadable(path string) bool {
	if isHidden(filepath.Base(path)) {
		return false
	}
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

func rootError(root string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("root path error: %s does not exist: %w", root, domain.ErrNotFound)
	}
	return fmt.Errorf("root path error: %w", err)
}

func sendErr(ctx context.Context, errs chan<- error, err error) {
	select {
	case errs <- err:
	case <-ctx.Done():
	}
}
