package syntax

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"
)

// Sentinel errors for document decoding.
var (
	ErrInvalidDocument = errors.New("invalid tree document")
	ErrInputTooLarge   = errors.New("tree document exceeds size limit")
)

// Document formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const lz4Extension = ".lz4"

// Unit is one analyzed unit: a tree and the name it is reported under.
type Unit struct {
	Name string `json:"name" yaml:"name"`
	Tree *Node  `json:"tree" yaml:"tree"`
}

// document is the on-disk shape: either a bare node or a list of units.
type document struct {
	Node  `yaml:",inline"`
	Units []Unit `json:"units,omitempty" yaml:"units,omitempty"`
}

// ReadOptions controls how tree documents are read from disk.
type ReadOptions struct {
	// MaxSize is the maximum decompressed document size in bytes. Zero means unlimited.
	MaxSize uint64

	// ValidateSchema validates JSON documents against TreeSchema before decoding.
	ValidateSchema bool
}

// Decode decodes a tree document in the given format. A bare tree becomes a
// single unit named after defaultName.
func Decode(data []byte, format, defaultName string) ([]Unit, error) {
	var doc document

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()

		err := dec.Decode(&doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)

		err := dec.Decode(&doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidDocument, format)
	}

	return doc.units(defaultName)
}

func (doc *document) units(defaultName string) ([]Unit, error) {
	if len(doc.Units) > 0 {
		if doc.Type != "" {
			return nil, fmt.Errorf("%w: document mixes a tree and units", ErrInvalidDocument)
		}

		for idx, unit := range doc.Units {
			if unit.Tree == nil || unit.Tree.Type == "" {
				return nil, fmt.Errorf("%w: unit %d (%s) has no tree", ErrInvalidDocument, idx, unit.Name)
			}
		}

		return doc.Units, nil
	}

	if doc.Type == "" {
		return nil, fmt.Errorf("%w: root node has no type", ErrInvalidDocument)
	}

	tree := doc.Node

	return []Unit{{Name: defaultName, Tree: &tree}}, nil
}

// ReadFile reads a tree document. The format is taken from the extension
// (".yaml"/".yml" for YAML, JSON otherwise); a trailing ".lz4" means the
// document is LZ4-compressed. The path "-" reads from stdin.
func ReadFile(path string, opts ReadOptions) ([]Unit, error) {
	var reader io.Reader

	name := path

	if path == "-" {
		reader = os.Stdin
		name = "stdin"
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open tree document: %w", err)
		}
		defer file.Close()

		reader = file
	}

	return Read(reader, name, opts)
}

// Read reads a tree document from reader; name selects the format the same
// way ReadFile does and names a bare tree.
func Read(reader io.Reader, name string, opts ReadOptions) ([]Unit, error) {
	base := name

	if strings.HasSuffix(base, lz4Extension) {
		reader = lz4.NewReader(reader)
		base = strings.TrimSuffix(base, lz4Extension)
	}

	data, err := readLimited(reader, opts.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	format := formatFor(base)

	if opts.ValidateSchema && format == FormatJSON {
		validateErr := ValidateJSON(data)
		if validateErr != nil {
			return nil, fmt.Errorf("%s: %w", name, validateErr)
		}
	}

	units, err := Decode(data, format, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return units, nil
}

func formatFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func readLimited(reader io.Reader, maxSize uint64) ([]byte, error) {
	if maxSize == 0 {
		return io.ReadAll(reader)
	}

	data, err := io.ReadAll(io.LimitReader(reader, int64(maxSize)+1)) //nolint:gosec // size limits are far below MaxInt64.
	if err != nil {
		return nil, err
	}

	if uint64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrInputTooLarge, maxSize)
	}

	return data, nil
}
