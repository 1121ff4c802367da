// Package telemetry defines the JSONL wire format for raw activity
// records shipped from learning clients, validates records against an
// embedded JSON Schema, and replays record streams through a session
// manager. Records carry timing metadata only; student-authored text
// never appears on the wire.
package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Record types. One JSONL line per record.
const (
	TypeSessionStart = "session_start"
	TypeSessionEnd   = "session_end"
	TypeKeystroke    = "keystroke"
	TypeBackspace    = "backspace"
	TypePaste        = "paste"
	TypeGap          = "gap"
)

// Record is one telemetry line. Type, UserID and TimestampMs are always
// present; the remaining fields apply to specific types.
type Record struct {
	Type        string `json:"type"`
	UserID      string `json:"userId"`
	TimestampMs int64  `json:"timestampMs"`

	// session_start only.
	Subject  string `json:"subject,omitempty"`
	Activity string `json:"activityType,omitempty"`

	// paste only.
	PastedLength int     `json:"pastedLength,omitempty"`
	ElapsedMs    float64 `json:"elapsedMs,omitempty"`

	// gap only.
	GapMs float64 `json:"gapMs,omitempty"`
}

// Time converts the record's epoch-millisecond timestamp.
func (r Record) Time() time.Time {
	return time.UnixMilli(r.TimestampMs).UTC()
}

// Schema is the embedded draft-07 schema for a single record. Clients
// vendor the same document; keep the two in sync when changing fields.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "$id": "https://integrityd.dev/schema/telemetry-record-v1.schema.json",
  "title": "Telemetry Record",
  "type": "object",
  "required": ["type", "userId", "timestampMs"],
  "properties": {
    "type": {
      "enum": ["session_start", "session_end", "keystroke", "backspace", "paste", "gap"]
    },
    "userId": {"type": "string", "minLength": 1},
    "timestampMs": {"type": "integer", "minimum": 0},
    "subject": {"type": "string"},
    "activityType": {
      "enum": ["quiz", "writing", "worksheet", "creative"]
    },
    "pastedLength": {"type": "integer", "minimum": 0},
    "elapsedMs": {"type": "number", "minimum": 0},
    "gapMs": {"type": "number", "minimum": 0}
  },
  "additionalProperties": false
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("telemetry-record-v1.schema.json", bytes.NewReader([]byte(Schema))); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = compiler.Compile("telemetry-record-v1.schema.json")
	})
	return schema, schemaErr
}

// ValidateRecord checks one JSONL line against the embedded schema.
func ValidateRecord(line []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile telemetry schema: %w", err)
	}
	var instance any
	if err := json.Unmarshal(line, &instance); err != nil {
		return fmt.Errorf("parse telemetry record: %w", err)
	}
	if err := s.Validate(instance); err != nil {
		return fmt.Errorf("invalid telemetry record: %w", err)
	}
	return nil
}

// Writer appends records as JSONL.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Write(r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(data); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Reader decodes a JSONL stream, validating each line against the
// schema before unmarshaling. Blank lines are skipped.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: sc}
}

// Next returns the next record, or io.EOF when the stream is done.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		raw := bytes.TrimSpace(r.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if err := ValidateRecord(raw); err != nil {
			return Record{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Record{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, err
	}
	return Record{}, io.EOF
}
