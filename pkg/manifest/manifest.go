package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/uzlow/webtools/pkg/registry"
	"github.com/uzlow/webtools/pkg/schema"
)

// Manifest is a declarative tool definition loaded from a JSON file. The
// entrypoint names a handler that must already be registered in the host's
// HandlerTable; the manifest binds metadata and schema to it.
type Manifest struct {
	Name        string                           `json:"name"`
	Description string                           `json:"description"`
	Entrypoint  string                           `json:"entrypoint"`
	Input       map[string]fieldDecl             `json:"input"`
	Required    []string                         `json:"required"`
	Functions   map[string]registry.FunctionInfo `json:"functions"`

	// inputOrder preserves the declaration order of Input's keys, which a
	// decoded Go map loses.
	inputOrder []string
}

type fieldDecl struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Default     any      `json:"default"`
	Enum        []any    `json:"enum"`
	Minimum     *float64 `json:"minimum"`
	Maximum     *float64 `json:"maximum"`
}

// Loader loads and validates manifest files.
type Loader struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
}

// NewLoader creates a manifest loader with the embedded meta-schema compiled.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger:       logger.With().Str("component", "manifest-loader").Logger(),
		schemaLoader: gojsonschema.NewStringLoader(MetaSchema),
	}
}

// Load reads, meta-validates, and parses one manifest file.
func (l *Loader) Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest JSON: %w", err)
	}

	if err := l.validateDocument(data); err != nil {
		return nil, fmt.Errorf("manifest validation failed: %w", err)
	}

	order, err := inputKeyOrder(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read input field order: %w", err)
	}
	m.inputOrder = order

	l.logger.Debug().
		Str("name", m.Name).
		Str("entrypoint", m.Entrypoint).
		Int("fields", len(m.inputOrder)).
		Msg("Loaded manifest")

	return &m, nil
}

// validateDocument checks the raw document against the meta-schema and
// reports every structural violation in one message.
func (l *Loader) validateDocument(data []byte) error {
	result, err := gojsonschema.Validate(l.schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("meta-schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// inputKeyOrder walks the raw JSON tokens to recover the declaration order of
// the "input" object's keys.
func inputKeyOrder(data []byte) ([]string, error) {
	var doc struct {
		Input json.RawMessage `json:"input"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Input) == 0 || bytes.Equal(bytes.TrimSpace(doc.Input), []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(doc.Input))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("input must be a JSON object")
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token in input object: %v", tok)
		}
		keys = append(keys, key)
		if err := skipValue(dec); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// skipValue consumes one complete JSON value from the decoder.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

// candidate adapts a loaded manifest to the registry's Candidate interface.
type candidate struct {
	manifest *Manifest
	table    *HandlerTable
	path     string
}

func (c candidate) ToolName() string { return c.manifest.Name }

func (c candidate) Describe() string { return c.manifest.Description }

func (c candidate) ResolveEntrypoint() (registry.Handler, error) {
	return c.table.Resolve(c.manifest.Entrypoint)
}

func (c candidate) BuildSchema() (*schema.Schema, error) {
	if c.manifest.Input == nil {
		return nil, nil
	}
	defs := make([]schema.FieldDef, 0, len(c.manifest.inputOrder))
	for _, name := range c.manifest.inputOrder {
		decl := c.manifest.Input[name]
		defs = append(defs, schema.FieldDef{
			Name: name,
			Spec: schema.FieldSpec{
				Type:        schema.FieldType(decl.Type),
				Required:    decl.Required,
				Default:     decl.Default,
				Enum:        decl.Enum,
				Minimum:     decl.Minimum,
				Maximum:     decl.Maximum,
				Description: decl.Description,
			},
		})
	}
	return schema.New(defs, c.manifest.Required)
}

func (c candidate) FunctionDocs() map[string]registry.FunctionInfo {
	if c.manifest.Functions == nil {
		return nil
	}
	docs := make(map[string]registry.FunctionInfo, len(c.manifest.Functions))
	for name, info := range c.manifest.Functions {
		if info.Name == "" {
			info.Name = name
		}
		docs[name] = info
	}
	return docs
}

func (c candidate) Origin() string { return c.path }

// failedCandidate stands in for a manifest file that could not be loaded, so
// the registry records the rejection instead of the file silently vanishing.
type failedCandidate struct {
	name string
	path string
	err  error
}

func (c failedCandidate) ToolName() string { return c.name }

func (c failedCandidate) Describe() string { return "" }

func (c failedCandidate) ResolveEntrypoint() (registry.Handler, error) { return nil, c.err }

func (c failedCandidate) BuildSchema() (*schema.Schema, error) { return nil, c.err }

func (c failedCandidate) FunctionDocs() map[string]registry.FunctionInfo { return nil }

func (c failedCandidate) Origin() string { return c.path }
