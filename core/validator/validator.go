/*
Package validator provides rule based field validation.

A rule set maps field names to a pipe delimited list of rule expressions:

	rules := map[string]string{
		"name":  "required|type:string|maxlen:64",
		"email": "email",
		"home":  "url:null",
	}

Each expression is a rule name, optionally followed by a colon and a comma
separated list of arguments. Rule arguments are always strings; every rule
coerces them as needed.
*/
package validator

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrNotChecked is returned by Failures if Check was never called
var ErrNotChecked = errors.New("validator: failures requested before check")

// DefaultCode is the code of a rule failure which does not specify one
const DefaultCode = http.StatusUnprocessableEntity

// Failure is one failed rule for one field
type Failure struct {
	Code    int    `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RuleError is returned by a rule function to signal a failure
type RuleError struct {
	Message string
	Code    int
}

// Error implements the error interface
func (e *RuleError) Error() string {
	return e.Message
}

// Fail returns a rule error with the default code
func Fail(format string, args ...any) error {
	return &RuleError{Message: fmt.Sprintf(format, args...), Code: DefaultCode}
}

// RuleFunc validates value of field. It returns nil on success, otherwise
// preferably a *RuleError.
type RuleFunc func(field string, value any, args []string) error

// Validator checks input against a rule set
type Validator struct {
	rules    map[string]string
	registry map[string]RuleFunc
	failures map[string][]Failure
	checked  bool
}

// New returns a validator for the given rule set with all built-in rules registered
func New(rules map[string]string) *Validator {
	v := &Validator{
		rules:    rules,
		registry: make(map[string]RuleFunc, len(builtins)),
	}
	for name, fn := range builtins {
		v.registry[name] = fn
	}
	return v
}

// Register adds or replaces a named rule
func (v *Validator) Register(name string, fn RuleFunc) *Validator {
	v.registry[name] = fn
	return v
}

// Check validates input. If validateAll is false, only fields present in input
// are validated, otherwise every field of the rule set is validated and absent
// fields have a nil value. All failures are collected; Check returns true if
// there were none.
func (v *Validator) Check(input map[string]any, validateAll bool) bool {
	v.failures = map[string][]Failure{}
	v.checked = true

	// deterministic order makes repeated checks produce identical failures
	fields := make([]string, 0, len(v.rules))
	for field := range v.rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value, present := input[field]
		if !validateAll && !present {
			continue
		}
		for _, expression := range strings.Split(v.rules[field], "|") {
			expression = strings.TrimSpace(expression)
			if expression == "" {
				continue
			}
			name, args := parseExpression(expression)
			fn, ok := v.registry[name]
			if !ok {
				v.failures[field] = append(v.failures[field], Failure{
					Code:    http.StatusInternalServerError,
					Field:   field,
					Message: fmt.Sprintf("unknown validation rule %s", name),
				})
				continue
			}
			if err := fn(field, value, args); err != nil {
				failure := Failure{Code: DefaultCode, Field: field, Message: err.Error()}
				var ruleErr *RuleError
				if errors.As(err, &ruleErr) && ruleErr.Code != 0 {
					failure.Code = ruleErr.Code
				}
				v.failures[field] = append(v.failures[field], failure)
			}
		}
	}
	return len(v.failures) == 0
}

// Failures returns the failures of the last check, grouped by field. It returns
// ErrNotChecked if Check has not been called yet.
func (v *Validator) Failures() (map[string][]Failure, error) {
	if !v.checked {
		return nil, ErrNotChecked
	}
	return v.failures, nil
}

func parseExpression(expression string) (string, []string) {
	parts := strings.SplitN(expression, ":", 2)
	name := strings.TrimSpace(parts[0])
	if len(parts) == 1 || parts[1] == "" {
		return name, nil
	}
	args := strings.Split(parts[1], ",")
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
	}
	return name, args
}

// Messages flattens failures to field -> messages
func Messages(failures map[string][]Failure) map[string][]string {
	messages := make(map[string][]string, len(failures))
	for field, list := range failures {
		for _, f := range list {
			messages[field] = append(messages[field], f.Message)
		}
	}
	return messages
}
