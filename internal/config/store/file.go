package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/dshills/cfgtree/internal/config/tree"
)

// Format converts between file bytes and a nested document.
type Format interface {
	Name() string
	Decode(data []byte) (map[string]any, error)
	Encode(doc map[string]any) ([]byte, error)
}

type options struct {
	fs   afero.Fs
	perm os.FileMode
}

func defaultOptions() options {
	return options{fs: afero.NewOsFs(), perm: 0o644}
}

// Option configures a file store.
type Option func(*options)

// WithFs sets the file system. The default is the OS file system.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		if fs != nil {
			o.fs = fs
		}
	}
}

// WithPerm sets the permission bits of written files.
func WithPerm(perm os.FileMode) Option {
	return func(o *options) { o.perm = perm }
}

// File keeps a tree in a nested document file.
type File struct {
	mu     sync.Mutex
	path   string
	format Format
	opts   options
}

// NewFile creates a file store. The file need not exist.
func NewFile(path string, format Format, opts ...Option) *File {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &File{path: path, format: format, opts: o}
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// Load reads and parses the file. A missing file is an empty document.
func (f *File) Load(ctx context.Context) (tree.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(ctx)
}

func (f *File) read(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := readFile(f.opts.fs, f.path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return Document{}, nil
	}
	doc, err := f.format.Decode(data)
	if err != nil {
		return nil, &ParseError{Path: f.path, Format: f.format.Name(), Err: err}
	}
	if doc == nil {
		doc = make(map[string]any)
	}
	return Document(doc), nil
}

// Save writes values into the file. Keys not in values are kept.
func (f *File) Save(ctx context.Context, values tree.Values) error {
	return f.Patch(ctx, values)
}

// Patch writes values into the file, replacing only the given paths.
func (f *File) Patch(ctx context.Context, values tree.Values) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read(ctx)
	if err != nil {
		return err
	}
	doc.Apply(values)
	data, err := f.format.Encode(doc)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", f.format.Name(), err)
	}
	return writeFileAtomic(f.opts.fs, f.path, data, f.opts.perm)
}

// readFile returns nil data for a missing file.
func readFile(fs afero.Fs, path string) ([]byte, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// writeFileAtomic writes to a temporary file and renames it over path so
// readers never see a partial file.
func writeFileAtomic(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, perm); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
