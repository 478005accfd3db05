package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// currentSchema describes the persisted history document.
const currentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["entries", "selected"],
  "properties": {
    "entries": {
      "type": "array",
      "items": {"$ref": "#/definitions/fileState"}
    },
    "selected": {"type": "integer", "minimum": 0}
  },
  "definitions": {
    "fileState": {
      "type": "object",
      "required": ["path", "name", "size", "time"],
      "properties": {
        "path": {"type": "string"},
        "name": {"type": "string"},
        "size": {"type": "integer", "minimum": 0},
        "time": {"type": "number"}
      }
    }
  }
}`

// legacySchema describes the single-file document written by older versions.
const legacySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["path", "name", "size", "time"],
  "properties": {
    "path": {"type": "string"},
    "name": {"type": "string"},
    "size": {"type": "integer", "minimum": 0},
    "time": {"type": "number"}
  }
}`

var (
	currentValidator = jsonschema.MustCompileString("https://glance.invalid/schema/history.json", currentSchema)
	legacyValidator  = jsonschema.MustCompileString("https://glance.invalid/schema/file-state.json", legacySchema)
)

// ErrNoSchema is returned by DecodeWith when no attempt accepts the document.
var ErrNoSchema = errors.New("history: document matches no known schema")

// SchemaAttempt is one way of reading a persisted document.
type SchemaAttempt struct {
	Name   string
	Decode func(data []byte) (State, error)
}

// Attempts is the ordered list tried by Decode. The first attempt that
// succeeds wins.
var Attempts = []SchemaAttempt{
	{Name: "current", Decode: DecodeCurrent},
	{Name: "legacy", Decode: DecodeLegacy},
}

// DecodeCurrent reads the {"entries": [...], "selected": n} document.
func DecodeCurrent(data []byte) (State, error) {
	if err := validate(currentValidator, data); err != nil {
		return State{}, err
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode history: %w", err)
	}
	if s.Entries == nil {
		s.Entries = []FileState{}
	}
	return s, nil
}

// DecodeLegacy reads a bare FileState document as a one-entry history.
func DecodeLegacy(data []byte) (State, error) {
	if err := validate(legacyValidator, data); err != nil {
		return State{}, err
	}
	var fs FileState
	if err := json.Unmarshal(data, &fs); err != nil {
		return State{}, fmt.Errorf("decode legacy file state: %w", err)
	}
	return State{Entries: []FileState{fs}, Selected: 0}, nil
}

func validate(schema *jsonschema.Schema, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	if dec.More() {
		return errors.New("parse json: trailing data")
	}
	return schema.Validate(doc)
}

// DecodeWith runs attempts in order and reports which one accepted data.
func DecodeWith(data []byte, attempts []SchemaAttempt) (State, string, error) {
	var errs []error
	for _, a := range attempts {
		s, err := a.Decode(data)
		if err == nil {
			return s, a.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", a.Name, err))
	}
	return Empty(), "", errors.Join(append([]error{ErrNoSchema}, errs...)...)
}

// Decode parses a persisted document. Missing, truncated or corrupt data
// yields an empty history; it is never an error.
func Decode(data []byte) State {
	s, _, _ := DecodeWith(data, Attempts)
	return s
}

// Encode serializes s in the current schema.
func Encode(s State) ([]byte, error) {
	if s.Entries == nil {
		s.Entries = []FileState{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return data, nil
}
