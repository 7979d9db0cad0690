// Package codec converts task collections to and from their persisted JSON
// form. The same bytes back the durable store and export files.
package codec

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"taskdash/internal/task"
)

//go:embed tasks.schema.json
var schemaJSON string

const schemaURL = "tasks.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// ImportParseError reports content that is not a valid task collection.
type ImportParseError struct {
	Err error
}

func (e *ImportParseError) Error() string {
	return "import parse error: " + e.Err.Error()
}

func (e *ImportParseError) Unwrap() error {
	return e.Err
}

// Marshal encodes tasks as an indented JSON array with a trailing newline.
func Marshal(tasks []task.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []task.Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tasks: %w", err)
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes and checks a task collection. Missing fields, wrong
// types, unknown enum values, bad dates, duplicate ids and titles that fail
// validation are all rejected.
func Unmarshal(data []byte) ([]task.Task, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tasks: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(doc); err != nil {
		return nil, schemaError(err)
	}

	var tasks []task.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	seen := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if j, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("[%d].id: duplicate id %q (first at [%d])", i, t.ID, j)
		}
		seen[t.ID] = i
		if err := task.ValidateTitle(t.Title); err != nil {
			return nil, fmt.Errorf("[%d].title: %w", i, err)
		}
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return tasks, nil
}

// Decode is Unmarshal with every failure wrapped in *ImportParseError.
func Decode(data []byte) ([]task.Task, error) {
	tasks, err := Unmarshal(data)
	if err != nil {
		return nil, &ImportParseError{Err: err}
	}
	return tasks, nil
}

// ReadFile loads an import file. Read failures are reported as
// *ImportParseError too, since the caller cannot use the content either way.
func ReadFile(path string) ([]task.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ImportParseError{Err: fmt.Errorf("read import file: %w", err)}
	}
	return Decode(data)
}

func WriteFile(path string, tasks []task.Task) error {
	data, err := Marshal(tasks)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	var msgs []string
	collectSchemaErrors(ve, &msgs)
	if len(msgs) == 0 {
		return err
	}
	return errors.New(strings.Join(msgs, "; "))
}

func collectSchemaErrors(ve *jsonschema.ValidationError, msgs *[]string) {
	if len(ve.Causes) == 0 {
		if path := pointerToPath(ve.InstanceLocation); path != "" {
			*msgs = append(*msgs, path+": "+ve.Message)
		} else {
			*msgs = append(*msgs, ve.Message)
		}
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaErrors(cause, msgs)
	}
}

// pointerToPath turns "/0/title" into "[0].title".
func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	if ptr == "" {
		return ""
	}
	var b strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			fmt.Fprintf(&b, "[%d]", idx)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
