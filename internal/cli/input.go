package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/hostmatch/internal/matching"
	"github.com/TimurManjosov/hostmatch/internal/routing"
)

// Stdin is read when a document path is "-".
var Stdin io.Reader = os.Stdin

// ReadDocument reads a JSON or YAML document and returns it as JSON.
// An empty path yields nil.
func ReadDocument(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, nil
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ToJSON(data)
}

// ToJSON converts a YAML or JSON document to JSON. JSON input is returned
// unchanged so number literals keep their precision.
func ToJSON(data []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed), nil
	}
	var doc any
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document to JSON: %w", err)
	}
	return out, nil
}

// ParseFallbackAction parses "type=value", e.g.
// "externalRedirectUrl=https://example.com".
func ParseFallbackAction(s string) (*matching.FallbackAction, error) {
	if s == "" {
		return nil, nil
	}
	typ, value, ok := strings.Cut(s, "=")
	if !ok {
		return nil, fmt.Errorf("invalid fallback action %q, expected type=value", s)
	}
	fa := &matching.FallbackAction{Type: matching.ActionType(typ), Value: value}
	if !fa.Type.Valid() {
		return nil, fmt.Errorf("unknown fallback action type %q", typ)
	}
	return fa, nil
}

// LoadForm reads a routing form from a YAML or JSON file.
func LoadForm(path string) (*routing.Form, error) {
	data, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("form %s is empty", path)
	}
	var form routing.Form
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	return &form, nil
}

// LoadResponse reads a form response from a file and applies field=value
// overrides on top of it.
func LoadResponse(path string, overrides []string) (routing.Response, error) {
	resp := routing.Response{}
	data, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	if data != nil {
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	for _, kv := range overrides {
		field, value, ok := strings.Cut(kv, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid response value %q, expected field=value", kv)
		}
		resp[field] = value
	}
	return resp, nil
}
