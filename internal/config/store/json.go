package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/cfgtree/internal/config/tree"
)

// JSON keeps a tree in a JSON document. Values are read and written in
// place by path, so unknown keys and key order survive a save.
type JSON struct {
	mu   sync.Mutex
	path string
	opts options
}

// NewJSON creates a JSON file store. The file need not exist.
func NewJSON(path string, opts ...Option) *JSON {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &JSON{path: path, opts: o}
}

// Path returns the file path.
func (j *JSON) Path() string { return j.path }

// Load reads the file. A missing file is an empty document.
func (j *JSON) Load(ctx context.Context) (tree.Source, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	data, err := j.read(ctx)
	if err != nil {
		return nil, err
	}
	return jsonSource(data), nil
}

func (j *JSON) read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := readFile(j.opts.fs, j.path)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []byte("{}"), nil
	}
	if !gjson.ValidBytes(data) {
		return nil, &ParseError{Path: j.path, Format: "json", Err: fmt.Errorf("invalid json")}
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, &ParseError{Path: j.path, Format: "json", Err: fmt.Errorf("top level is not an object")}
	}
	return data, nil
}

// Save writes values into the document. Keys not in values are kept.
func (j *JSON) Save(ctx context.Context, values tree.Values) error {
	return j.Patch(ctx, values)
}

// Patch writes values into the document, replacing only the given paths.
func (j *JSON) Patch(ctx context.Context, values tree.Values) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := j.read(ctx)
	if err != nil {
		return err
	}
	for _, p := range values.Paths() {
		data, err = sjson.SetBytes(data, jsonPath(tree.ParsePath(p)), values[p])
		if err != nil {
			return fmt.Errorf("setting %s: %w", p, err)
		}
	}
	return writeFileAtomic(j.opts.fs, j.path, pretty.Pretty(data), j.opts.perm)
}

type jsonSource []byte

func (s jsonSource) Lookup(path tree.Path) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	r := gjson.GetBytes(s, jsonPath(path))
	if !r.Exists() {
		return nil, false
	}
	return r.Value(), true
}

// jsonPath escapes each segment for gjson and sjson path syntax.
func jsonPath(path tree.Path) string {
	segs := make([]string, len(path))
	for i, seg := range path {
		var b strings.Builder
		for _, r := range seg {
			if strings.ContainsRune(`\.*?|#@!=<>%:"`, r) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		segs[i] = b.String()
	}
	return strings.Join(segs, ".")
}
