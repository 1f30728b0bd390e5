package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TimurManjosov/hostmatch/internal/query"
)

// Configuration errors attached to individual rules by Compile.
var (
	ErrUnknownAttribute     = errors.New("unknown attribute")
	ErrValueTypeMismatch    = errors.New("value type does not match attribute type")
	ErrOperatorNotSupported = errors.New("operator not supported for attribute type")
	ErrOperandShape         = errors.New("operand does not fit operator")
	ErrIncompleteRule       = errors.New("incomplete rule")
)

// Operand is a rule value converted into the form its operator needs.
type Operand struct {
	// Text is the scalar operand of select, text and equality operators.
	Text string
	// Number is the scalar operand of numeric comparisons.
	Number float64
	// Low and High bound between/not_between, inclusive.
	Low, High float64
	// List holds option ids of list operators, in rule order.
	List []string

	set map[string]struct{}
}

// RuleError describes a rule that could not be bound to the catalog. The rule
// still evaluates, under the absence policy of its operator.
type RuleError struct {
	RuleID   string         `json:"ruleId,omitempty"`
	Field    string         `json:"field"`
	Operator query.Operator `json:"operator"`
	Err      error          `json:"-"`
}

func (e *RuleError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("rule %s (field=%s operator=%s): %v", e.RuleID, e.Field, e.Operator, e.Err)
	}
	return fmt.Sprintf("rule field=%s operator=%s: %v", e.Field, e.Operator, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// MarshalJSON exposes the error message alongside the rule coordinates.
func (e *RuleError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		RuleID   string         `json:"ruleId,omitempty"`
		Field    string         `json:"field"`
		Operator query.Operator `json:"operator"`
		Message  string         `json:"message"`
	}{e.RuleID, e.Field, e.Operator, msg})
}

// UnmarshalJSON restores a RuleError written by MarshalJSON. The sentinel
// identity of Err is not preserved.
func (e *RuleError) UnmarshalJSON(data []byte) error {
	var w struct {
		RuleID   string         `json:"ruleId"`
		Field    string         `json:"field"`
		Operator query.Operator `json:"operator"`
		Message  string         `json:"message"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.RuleID, e.Field, e.Operator = w.RuleID, w.Field, w.Operator
	if w.Message != "" {
		e.Err = errors.New(w.Message)
	}
	return nil
}
