package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind separates caller mistakes from internal inconsistencies so the
// transport layer can choose a status code.
type ErrorKind int

const (
	// ErrorKindComputation is an impossible state reached while calculating
	ErrorKindComputation ErrorKind = iota
	// ErrorKindInput is a bad request value
	ErrorKindInput
	// ErrorKindConfiguration is inconsistent catalog data
	ErrorKindConfiguration
)

// String returns string representation of error kind
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindInput:
		return "input"
	case ErrorKindConfiguration:
		return "configuration"
	default:
		return "computation"
	}
}

type kinded interface {
	Kind() ErrorKind
}

// KindOf classifies err. Errors outside the taxonomy count as computation errors.
func KindOf(err error) ErrorKind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ErrorKindComputation
}

// IsCallerError reports whether err was caused by the request rather than the engine
func IsCallerError(err error) bool {
	return err != nil && KindOf(err) == ErrorKindInput
}

// ConfigurationError represents inconsistent catalog data found at load time
type ConfigurationError struct {
	Source  string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("catalog %s: %s", e.Source, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error     { return e.Err }
func (e *ConfigurationError) Kind() ErrorKind   { return ErrorKindConfiguration }
func (e *ConfigurationError) IsTransient() bool { return false }

// InvalidLayerCountError is returned when a layer count outside the supported set is requested
type InvalidLayerCountError struct {
	Requested int
	Allowed   []int
}

func (e *InvalidLayerCountError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, n := range e.Allowed {
		allowed[i] = fmt.Sprint(n)
	}
	return fmt.Sprintf("invalid layer count %d, expected one of %s", e.Requested, strings.Join(allowed, ", "))
}

func (e *InvalidLayerCountError) Kind() ErrorKind   { return ErrorKindInput }
func (e *InvalidLayerCountError) IsTransient() bool { return false }

// UnknownMaterialError is returned for a key missing from the property table,
// or whose k/R definition is inconsistent.
type UnknownMaterialError struct {
	Key    string
	Reason string
}

func (e *UnknownMaterialError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unknown material %q", e.Key)
	}
	return fmt.Sprintf("material %q: %s", e.Key, e.Reason)
}

func (e *UnknownMaterialError) Kind() ErrorKind   { return ErrorKindInput }
func (e *UnknownMaterialError) IsTransient() bool { return false }

// UnknownKindError is returned for a question kind with no catalog
type UnknownKindError struct {
	Requested string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown question kind %q", e.Requested)
}

func (e *UnknownKindError) Kind() ErrorKind   { return ErrorKindInput }
func (e *UnknownKindError) IsTransient() bool { return false }

// InvalidResistanceError is returned when a resistance that must be positive is not
type InvalidResistanceError struct {
	Material   string
	Resistance float64
}

func (e *InvalidResistanceError) Error() string {
	return fmt.Sprintf("invalid thermal resistance %v m²K/W for %q", e.Resistance, e.Material)
}

func (e *InvalidResistanceError) Kind() ErrorKind   { return ErrorKindComputation }
func (e *InvalidResistanceError) IsTransient() bool { return false }

// DivisionError is returned instead of silently producing an infinity
type DivisionError struct {
	Quantity string
}

func (e *DivisionError) Error() string {
	return fmt.Sprintf("division by zero computing %s", e.Quantity)
}

func (e *DivisionError) Kind() ErrorKind   { return ErrorKindComputation }
func (e *DivisionError) IsTransient() bool { return false }
