package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ErrorKind classifies why an envelope carries an error.
type ErrorKind string

const (
	KindAuthRequired ErrorKind = "authentication_required"
	KindNetwork      ErrorKind = "network_error"
	KindAPI          ErrorKind = "api_error"
	KindUnknown      ErrorKind = "unknown_error"
)

// Error ids synthesized on the client side.
const (
	IDAuthRequired = "authentication_required"
	IDNetwork      = "network_error"
	IDUnknown      = "unknown_error"
)

// MsgUnknown is the message used for unexpected client-side failures.
const MsgUnknown = "An unexpected error occurred."

// ErrorID identifies an API error. The backend sends either a number or a
// string; the zero value is an empty text id.
type ErrorID struct {
	text    string
	num     int64
	numeric bool
}

// TextID returns a string error id.
func TextID(s string) ErrorID { return ErrorID{text: s} }

// NumericID returns a numeric error id.
func NumericID(n int64) ErrorID { return ErrorID{num: n, numeric: true} }

func (id ErrorID) IsNumeric() bool { return id.numeric }

// Int64 returns the numeric value and whether the id is numeric.
func (id ErrorID) Int64() (int64, bool) { return id.num, id.numeric }

// Text returns the string value and whether the id is textual.
func (id ErrorID) Text() (string, bool) { return id.text, !id.numeric }

func (id ErrorID) IsZero() bool { return !id.numeric && id.text == "" }

// Is reports whether id is the text id s.
func (id ErrorID) Is(s string) bool { return !id.numeric && id.text == s }

func (id ErrorID) String() string {
	if id.numeric {
		return strconv.FormatInt(id.num, 10)
	}
	return id.text
}

func (id ErrorID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(strconv.FormatInt(id.num, 10)), nil
	}
	return json.Marshal(id.text)
}

func (id *ErrorID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ErrorID{}
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = TextID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("error id must be a string or number: %w", err)
	}
	v, err := n.Int64()
	if err != nil {
		return fmt.Errorf("error id %s is not an integer: %w", n, err)
	}
	*id = NumericID(v)
	return nil
}

// APIError is the error branch of an Envelope.
type APIError struct {
	ID      ErrorID   `json:"id"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

func (e *APIError) Error() string {
	if e.ID.IsZero() {
		return e.Message
	}
	return e.ID.String() + ": " + e.Message
}

// Envelope is the uniform shape every backend call resolves to.
type Envelope[T any] struct {
	Success bool      `json:"success"`
	Data    *T        `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// OK returns a successful envelope. data may be nil.
func OK[T any](data *T) Envelope[T] {
	return Envelope[T]{Success: true, Data: data}
}

// Fail returns a failed envelope carrying the given error.
func Fail[T any](kind ErrorKind, id ErrorID, message string) Envelope[T] {
	return Envelope[T]{Error: &APIError{ID: id, Message: message, Kind: kind}}
}

// Kind returns the error kind, or "" for a successful envelope.
func (e Envelope[T]) Kind() ErrorKind {
	if e.Success || e.Error == nil {
		return ""
	}
	return e.Error.Kind
}

// Valid reports whether the success/error invariant holds.
func (e Envelope[T]) Valid() bool {
	if e.Success {
		return e.Error == nil
	}
	return e.Error != nil
}
