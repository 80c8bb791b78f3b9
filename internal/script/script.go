// Package script loads keystroke replay scripts and runs them against a
// text service hosted on the in-memory platform.
//
// A script is a JSON document validated against an embedded JSON Schema
// before it is decoded.
package script

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"textservice/internal/host"
)

//go:embed schema.json
var schemaData []byte

const schemaURL = "https://textservice.local/schema/replay-v1.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func replaySchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaData)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiled, compileErr
}

// Op names a step kind.
type Op string

const (
	OpKey       Op = "key"
	OpKeyUp     Op = "keyup"
	OpHotKey    Op = "hotkey"
	OpSelect    Op = "select"
	OpTerminate Op = "terminate"
	OpPump      Op = "pump"
	OpFocus     Op = "focus"
	OpDisable   Op = "disable"
	OpExpect    Op = "expect"
)

// Script is a decoded replay script.
type Script struct {
	Version     int    `json:"version"`
	Description string `json:"description,omitempty"`
	// Text is the initial document content. The caret starts at its end.
	Text string `json:"text,omitempty"`
	// Open sets the keyboard toggle before the first step. Defaults to true.
	Open  *bool  `json:"open,omitempty"`
	Steps []Step `json:"steps"`
}

// Step is one action or expectation.
type Step struct {
	Op     Op     `json:"op"`
	Key    string `json:"key,omitempty"`
	HotKey string `json:"hotkey,omitempty"`
	Start  int    `json:"start,omitempty"`
	End    int    `json:"end,omitempty"`
	Value  bool   `json:"value,omitempty"`

	// Expectations. Unset fields are not checked.
	Text        *string `json:"text,omitempty"`
	Composing   *bool   `json:"composing,omitempty"`
	Open        *bool   `json:"open,omitempty"`
	Eaten       *bool   `json:"eaten,omitempty"`
	Selection   []int   `json:"selection,omitempty"`
	Composition []int   `json:"composition,omitempty"`
	Pending     *int    `json:"pending,omitempty"`
}

// Load reads and validates the script at path.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse validates data against the replay schema and decodes it.
func Parse(data []byte) (*Script, error) {
	schema, err := replaySchema()
	if err != nil {
		return nil, err
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}

	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	return &s, nil
}

// VirtualKey maps a step key name to its virtual key: a letter, one of
// left, right, enter, space, or a 0x-prefixed code.
func VirtualKey(name string) (host.VirtualKey, error) {
	switch strings.ToLower(name) {
	case "left":
		return host.VKLeft, nil
	case "right":
		return host.VKRight, nil
	case "enter":
		return host.VKReturn, nil
	case "space":
		return host.VKSpace, nil
	}
	if len(name) == 1 {
		c := strings.ToUpper(name)[0]
		if c >= 'A' && c <= 'Z' {
			return host.VirtualKey(c), nil
		}
	}
	if strings.HasPrefix(name, "0x") {
		v, err := strconv.ParseUint(name[2:], 16, 8)
		if err == nil {
			return host.VirtualKey(v), nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", name)
}
