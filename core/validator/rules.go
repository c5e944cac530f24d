package validator

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"unicode/utf8"
)

var builtins = map[string]RuleFunc{
	"required": required,
	"notempty": notEmpty,
	"type":     typeOf,
	"classof":  classOf,
	"strlen":   strLen,
	"minlen":   minLen,
	"maxlen":   maxLen,
	"email":    email,
	"url":      validURL,
}

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func allowsNull(args []string, at int) bool {
	return len(args) > at && args[at] == "null"
}

func required(field string, value any, _ []string) error {
	if value == nil {
		return Fail("%s is required", field)
	}
	return nil
}

// notEmpty treats numeric zero and the string "0" as not empty
func notEmpty(field string, value any, _ []string) error {
	if isEmpty(value) {
		return Fail("%s must not be empty", field)
	}
	return nil
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// TypeName returns the portable type name of value: string, integer, float,
// boolean, array, object or null.
func TypeName(value any) string {
	if value == nil {
		return "null"
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == float64(int64(f)) {
			return "integer"
		}
		return "float"
	case reflect.Slice, reflect.Array, reflect.Map:
		return "array"
	case reflect.Ptr:
		if rv.IsNil() {
			return "null"
		}
		return "object"
	}
	return "object"
}

func typeOf(field string, value any, args []string) error {
	if len(args) == 0 {
		return &RuleError{Message: "type rule for " + field + " lacks a type", Code: 500}
	}
	if value == nil && allowsNull(args, 1) {
		return nil
	}
	want := args[0]
	if want == "double" {
		want = "float"
	}
	if want == "bool" {
		want = "boolean"
	}
	if want == "int" {
		want = "integer"
	}
	got := TypeName(value)
	// every integral number is also a float
	if want == "float" && got == "integer" {
		if rv := reflect.ValueOf(value); rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64 {
			got = "float"
		}
	}
	if got != want {
		return Fail("%s must be of type %s", field, args[0])
	}
	return nil
}

// classOf compares the dynamic type name of value with the class argument.
// Both the qualified ("time.Time") and the short ("Time") name match.
func classOf(field string, value any, args []string) error {
	if len(args) == 0 {
		return &RuleError{Message: "classof rule for " + field + " lacks a class", Code: 500}
	}
	if value == nil {
		if allowsNull(args, 1) {
			return nil
		}
		return Fail("%s must be an instance of %s", field, args[0])
	}
	t := reflect.TypeOf(value)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.String() != args[0] && t.Name() != args[0] {
		return Fail("%s must be an instance of %s", field, args[0])
	}
	return nil
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprint(value)
}

func lengthArg(field, rule string, args []string) (int, error) {
	if len(args) == 0 {
		return 0, &RuleError{Message: rule + " rule for " + field + " lacks a length", Code: 500}
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, &RuleError{Message: rule + " rule for " + field + " has an invalid length " + args[0], Code: 500}
	}
	return n, nil
}

func strLen(field string, value any, args []string) error {
	n, err := lengthArg(field, "strlen", args)
	if err != nil {
		return err
	}
	if utf8.RuneCountInString(stringValue(value)) != n {
		return Fail("%s must be exactly %d characters long", field, n)
	}
	return nil
}

func minLen(field string, value any, args []string) error {
	n, err := lengthArg(field, "minlen", args)
	if err != nil {
		return err
	}
	if utf8.RuneCountInString(stringValue(value)) < n {
		return Fail("%s must be at least %d characters long", field, n)
	}
	return nil
}

func maxLen(field string, value any, args []string) error {
	n, err := lengthArg(field, "maxlen", args)
	if err != nil {
		return err
	}
	if utf8.RuneCountInString(stringValue(value)) > n {
		return Fail("%s must be at most %d characters long", field, n)
	}
	return nil
}

// email accepts a single address or a list of addresses which must all match
func email(field string, value any, _ []string) error {
	if list, ok := value.([]any); ok {
		for _, item := range list {
			s, ok := item.(string)
			if !ok || !emailRegexp.MatchString(s) {
				return Fail("%s must contain only valid email addresses", field)
			}
		}
		return nil
	}
	if list, ok := value.([]string); ok {
		for _, s := range list {
			if !emailRegexp.MatchString(s) {
				return Fail("%s must contain only valid email addresses", field)
			}
		}
		return nil
	}
	s, ok := value.(string)
	if !ok || !emailRegexp.MatchString(s) {
		return Fail("%s must be a valid email address", field)
	}
	return nil
}

func validURL(field string, value any, args []string) error {
	if value == nil && allowsNull(args, 0) {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return Fail("%s must be a valid URL", field)
	}
	u, err := url.ParseRequestURI(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Fail("%s must be a valid URL", field)
	}
	return nil
}
