package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operation represents a resource operation, one of Create, Read, Update, Replace, Delete, List
type Operation string

// all supported resource operations
const (
	OperationCreate  Operation = "create"
	OperationRead    Operation = "read"
	OperationUpdate  Operation = "update"
	OperationReplace Operation = "replace"
	OperationDelete  Operation = "delete"
	OperationList    Operation = "list"
)

// UnmarshalJSON is a custom JSON unmarshaller
func (o *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Operation(s)
	switch *o {
	case OperationCreate, OperationRead, OperationUpdate, OperationReplace, OperationDelete, OperationList:
		return nil
	default:
		return fmt.Errorf("%s is not valid Operation", s)
	}
}

// Plural returns the plural form of the passed singular string.
//
// This is the algorithm used to create idiomatic REST routes and
// container names from singular resource names.
func Plural(singular string) string {
	if strings.HasSuffix(singular, "s") {
		return singular
	}
	if strings.HasSuffix(singular, "y") {
		return strings.TrimSuffix(singular, "y") + "ies"
	}
	if strings.HasSuffix(singular, "child") {
		return strings.TrimSuffix(singular, "child") + "children"
	}
	return singular + "s"
}
