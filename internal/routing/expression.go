package routing

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/diegoholiveira/jsonlogic/v3"
)

// ErrInvalidExpression is returned when a route expression is not valid JSON Logic.
var ErrInvalidExpression = errors.New("invalid expression: not valid JSON Logic")

// expressionBytes returns the JSON form of a route expression, nil when the
// expression is empty.
func expressionBytes(expr any) ([]byte, error) {
	switch v := expr.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return []byte(v), nil
	case json.RawMessage:
		if len(bytes.TrimSpace(v)) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return nil, nil
		}
		return v, nil
	}
	b, err := json.Marshal(normalizeYAML(expr))
	if err != nil {
		return nil, ErrInvalidExpression
	}
	return b, nil
}

// Evaluate applies a route expression to response data. An empty expression
// accepts everything.
func Evaluate(expr any, data map[string]any) (bool, error) {
	rule, err := expressionBytes(expr)
	if err != nil {
		return false, err
	}
	if rule == nil {
		return true, nil
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return false, err
	}

	var resultBuf bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(rule), bytes.NewReader(dataBytes), &resultBuf); err != nil {
		return false, ErrInvalidExpression
	}

	var result any
	if err := json.Unmarshal(resultBuf.Bytes(), &result); err != nil {
		return false, err
	}
	return isTruthy(result), nil
}

// ValidateExpression checks that expr is empty or valid JSON Logic.
func ValidateExpression(expr any) error {
	rule, err := expressionBytes(expr)
	if err != nil {
		return err
	}
	if rule == nil {
		return nil
	}

	var parsed any
	if err := json.Unmarshal(rule, &parsed); err != nil {
		return ErrInvalidExpression
	}
	var resultBuf bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(rule), strings.NewReader("{}"), &resultBuf); err != nil {
		return ErrInvalidExpression
	}
	return nil
}

// isTruthy follows JSON Logic truthiness.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
