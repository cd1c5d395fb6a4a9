// Package loader decodes form specifications and data snapshots from JSON
// and YAML documents.
//
// Both formats are first decoded into the generic JSON value model
// (nil, bool, float64, string, []any, map[string]any) and then mapped onto
// types.FormSpecification with mapstructure, so a YAML spec and its JSON
// rendering always produce identical structs. Condition and customProps
// fields keep their generic shape; internal/rules closes them later.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/solatis/formkeeper/internal/types"
	"gopkg.in/yaml.v3"
)

// Format identifies a document encoding.
type Format int

const (
	// FormatAuto sniffs the first significant byte: '{' or '[' is JSON,
	// anything else YAML.
	FormatAuto Format = iota
	FormatJSON
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "auto"
	}
}

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return FormatAuto, fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, name)
	}
}

// FormatFromPath picks a Format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatAuto
	}
}

// SpecDocument is a decoded specification plus decode diagnostics.
type SpecDocument struct {
	Spec *types.FormSpecification

	// UnknownFields lists document keys that no specification field
	// consumed, sorted. They are ignored.
	UnknownFields []string
}

// DecodeSpec decodes a JSON or YAML specification document.
// Structural type errors (a string where a list belongs) are returned as a
// *types.SpecError.
func DecodeSpec(data []byte, format Format) (*SpecDocument, error) {
	raw, err := decodeGeneric(data, format)
	if err != nil {
		return nil, err
	}
	return SpecFromValue(raw)
}

// SpecFromValue maps an already decoded generic document onto a
// FormSpecification. Transports that receive structured payloads
// (structpb, JSON request bodies) use it directly.
func SpecFromValue(raw any) (*SpecDocument, error) {
	normalized, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	if _, ok := normalized.(map[string]any); !ok {
		return nil, &types.SpecError{Problems: []types.Problem{{
			Location: "$",
			Message:  fmt.Sprintf("document must be an object, got %s", kindOf(normalized)),
		}}}
	}

	spec := &types.FormSpecification{}
	var meta mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:  "json",
		Result:   spec,
		Metadata: &meta,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(normalized); err != nil {
		return nil, decodeError(err)
	}

	sort.Strings(meta.Unused)
	return &SpecDocument{Spec: spec, UnknownFields: meta.Unused}, nil
}

// DecodeData decodes a JSON or YAML data snapshot. An empty document is an
// empty snapshot.
func DecodeData(data []byte, format Format) (types.Data, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return types.Data{}, nil
	}
	raw, err := decodeGeneric(data, format)
	if err != nil {
		return nil, err
	}
	return DataFromValue(raw)
}

// DataFromValue normalizes an already decoded snapshot. nil is an empty
// snapshot.
func DataFromValue(raw any) (types.Data, error) {
	normalized, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	switch v := normalized.(type) {
	case nil:
		return types.Data{}, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("data snapshot must be an object, got %s", kindOf(normalized))
	}
}

// LoadSpecFile reads and decodes a specification file.
func LoadSpecFile(path string) (*SpecDocument, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := DecodeSpec(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// LoadDataFile reads and decodes a data snapshot file.
func LoadDataFile(path string) (types.Data, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	snapshot, err := DecodeData(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snapshot, nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > types.MaxDocumentSize {
		return nil, fmt.Errorf("%s: %w (%d bytes)", path, types.ErrDocumentTooLarge, info.Size())
	}
	return os.ReadFile(path)
}

// decodeGeneric decodes data into the generic value model.
func decodeGeneric(data []byte, format Format) (any, error) {
	if len(data) > types.MaxDocumentSize {
		return nil, fmt.Errorf("%w (%d bytes)", types.ErrDocumentTooLarge, len(data))
	}
	if format == FormatAuto {
		format = sniff(data)
	}

	var raw any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %v", types.ErrUnsupportedFormat, format)
	}
	return raw, nil
}

func sniff(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// decodeError turns mapstructure field errors into located problems.
func decodeError(err error) error {
	msErr, ok := err.(*mapstructure.Error)
	if !ok {
		return &types.SpecError{Problems: []types.Problem{{Location: "$", Message: err.Error()}}}
	}
	problems := make([]types.Problem, 0, len(msErr.Errors))
	for _, msg := range msErr.Errors {
		problems = append(problems, types.Problem{Location: fieldOf(msg), Message: msg})
	}
	return &types.SpecError{Problems: problems}
}

// fieldOf extracts the quoted field name mapstructure puts first in its
// messages, e.g. "'sections[0].hidden' expected type 'bool'".
func fieldOf(msg string) string {
	if strings.HasPrefix(msg, "'") {
		if end := strings.Index(msg[1:], "'"); end >= 0 {
			if field := msg[1 : end+1]; field != "" {
				return field
			}
		}
	}
	return "$"
}
