// Package realtime serves a task collection over HTTP and websockets and
// provides the matching service.Service client.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"todolist/internal/task"
)

// Routes.
const (
	PathHealth    = "/healthz"
	PathTasks     = "/v1/tasks"
	PathSubscribe = "/v1/subscribe"
)

// Frame types pushed over the subscription socket.
const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// maxBodyBytes caps request bodies on write routes.
const maxBodyBytes = 64 << 10

// Entry is one task on the wire.
type Entry struct {
	Key         string        `json:"key"`
	Description string        `json:"description"`
	Priority    task.Priority `json:"priority"`
}

// Frame is one websocket message from server to client.
type Frame struct {
	Type  string  `json:"type"`
	Tasks []Entry `json:"tasks,omitempty"`
	Error string  `json:"error,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func toWire(entries []task.Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{Key: e.Key, Description: e.Record.Description, Priority: e.Record.Priority}
	}
	return out
}

func fromWire(entries []Entry) []task.Entry {
	out := make([]task.Entry, len(entries))
	for i, e := range entries {
		out[i] = task.Entry{Key: e.Key, Record: task.NewRecord(e.Description, e.Priority)}
	}
	return out
}

const recordSchemaURL = "https://todolist.local/schemas/record.json"

const recordSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"description": {"type": "string", "minLength": 1},
		"priority": {"type": "integer", "minimum": 0, "maximum": 3}
	},
	"required": ["description", "priority"],
	"additionalProperties": false
}`

// ErrInvalidRecord wraps every record body that fails validation.
var ErrInvalidRecord = errors.New("invalid record")

// recordValidator checks request bodies against the record schema.
type recordValidator struct {
	schema *jsonschema.Schema
}

func newRecordValidator() (*recordValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(recordSchemaURL, strings.NewReader(recordSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(recordSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &recordValidator{schema: schema}, nil
}

// decode validates body and returns the record it holds.
func (v *recordValidator) decode(body []byte) (task.Record, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return task.Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return task.Record{}, schemaError(err)
	}
	var rec task.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return task.Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return rec, nil
}

// schemaError reduces a validation error to its first leaf cause.
func schemaError(err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Errorf("%w: %s: %s", ErrInvalidRecord, loc, ve.Message)
}
