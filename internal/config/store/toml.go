package store

import (
	"github.com/pelletier/go-toml/v2"
)

type tomlFormat struct{}

func (tomlFormat) Name() string { return "toml" }

func (tomlFormat) Decode(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (tomlFormat) Encode(doc map[string]any) ([]byte, error) {
	return toml.Marshal(doc)
}

// TOMLFormat is the TOML file format.
var TOMLFormat Format = tomlFormat{}

// NewTOML creates a TOML file store.
func NewTOML(path string, opts ...Option) *File {
	return NewFile(path, TOMLFormat, opts...)
}
