package store

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

type yamlFormat struct{}

func (yamlFormat) Name() string { return "yaml" }

func (yamlFormat) Decode(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (yamlFormat) Encode(doc map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// YAMLFormat is the YAML file format.
var YAMLFormat Format = yamlFormat{}

// NewYAML creates a YAML file store.
func NewYAML(path string, opts ...Option) *File {
	return NewFile(path, YAMLFormat, opts...)
}
