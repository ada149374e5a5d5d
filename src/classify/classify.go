// Package classify derives the shape of an envelope's "message" field.
//
// Classification is a pure function of the envelope bytes: the same input
// always yields the same Shape and the same description.
package classify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"kafka-bridge/src/contracts"
)

// ErrNotObject is returned when the envelope's top-level value is not a JSON object.
var ErrNotObject = errors.New("envelope is not a JSON object")

// Shape is the closed set of categories a message field can fall into.
// The concrete types are String, Boolean, Number, Array, Object and Absent.
type Shape interface {
	// Describe returns the observation logged for this shape.
	Describe() string
	shape()
}

// String is a JSON string.
type String struct{ Value string }

// Boolean is a JSON boolean.
type Boolean struct{ Value bool }

// Number is a JSON number kept as its original text.
type Number struct{ Value json.Number }

// Array is a JSON array; only its length is kept.
type Array struct{ Len int }

// Object is a JSON object; only its top-level keys are kept, sorted.
type Object struct{ Keys []string }

// Absent means the field is missing or null.
type Absent struct{}

func (String) shape()  {}
func (Boolean) shape() {}
func (Number) shape()  {}
func (Array) shape()   {}
func (Object) shape()  {}
func (Absent) shape()  {}

func (s String) Describe() string {
	return "The consumed message is a String: " + s.Value
}

func (b Boolean) Describe() string {
	return fmt.Sprintf("The consumed message is a Boolean: %t", b.Value)
}

func (n Number) Describe() string {
	return "The consumed message is a Number: " + n.Value.String()
}

func (a Array) Describe() string {
	return fmt.Sprintf("The consumed message is a JSON Array. Size: %d", a.Len)
}

func (o Object) Describe() string {
	return fmt.Sprintf("The consumed message is a JSON Object. Keys: %q", o.Keys)
}

func (Absent) Describe() string {
	return "The consumed message is null or does not exist."
}

// Classify decodes envelope and classifies its "message" field.
// It returns ErrNotObject (wrapped) when the envelope is not a JSON object.
func Classify(envelope []byte) (Shape, error) {
	tree, err := decodeTree(envelope)
	if err != nil {
		return nil, err
	}
	return classifyValue(tree[contracts.MessageField])
}

// decodeTree parses the top level of envelope; nested values stay raw until classified.
func decodeTree(envelope []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(envelope)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: %s", ErrNotObject, preview(trimmed))
	}

	var tree map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	return tree, nil
}

func classifyValue(raw json.RawMessage) (Shape, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Absent{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode message field: %w", err)
	}

	switch val := v.(type) {
	case string:
		return String{Value: val}, nil
	case bool:
		return Boolean{Value: val}, nil
	case json.Number:
		return Number{Value: val}, nil
	case []interface{}:
		return Array{Len: len(val)}, nil
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return Object{Keys: keys}, nil
	default:
		return nil, fmt.Errorf("unexpected message value of type %T", v)
	}
}

func preview(b []byte) string {
	const max = 64
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
