package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeusync/btcore/internal/core/btree"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a tree file.
type Format uint8

const (
	FormatYAML Format = iota
	FormatJSON
)

var ErrUnsupportedFormat = errors.New("unsupported tree file format")

// File is one tree file. A file holds any number of node assets keyed by path and
// may name the tree it is meant to be started from.
type File struct {
	Root  string                       `json:"root,omitempty" yaml:"root,omitempty"`
	Nodes map[string]*btree.Definition `json:"nodes" yaml:"nodes"`
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// IsTreeFile reports whether path has a tree file extension.
func IsTreeFile(path string) bool {
	_, err := FormatOf(path)
	return err == nil
}

// Decode reads a tree file. Node paths default to their map key.
func Decode(r io.Reader, format Format) (*File, error) {
	var f File
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&f); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnsupportedFormat
	}

	for key, d := range f.Nodes {
		if d == nil {
			return nil, fmt.Errorf("node %q is empty", key)
		}
		if d.Path == "" {
			d.Path = key
		}
		if d.Path != key {
			return nil, fmt.Errorf("node %q declares path %q", key, d.Path)
		}
	}
	if f.Root != "" {
		if _, ok := f.Nodes[f.Root]; !ok {
			return nil, fmt.Errorf("root %q is not defined in the file", f.Root)
		}
	}
	return &f, nil
}

// LoadFile reads and decodes one tree file.
func LoadFile(path string) (*File, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	f, err := Decode(fh, format)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return f, nil
}

// TreeFiles lists the tree files directly under dir, sorted.
func TreeFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !IsTreeFile(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
