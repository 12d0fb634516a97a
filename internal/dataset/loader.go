// Package dataset loads evaluation suites from disk. Four formats share one
// entry point: JSON (a suite object or a bare case array), JSONL (one case
// per line), CSV (a header row mapping columns to case fields), and YAML
// (suite object or bare sequence). Every format lands in the same Suite and
// passes the same validation.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/crucible/pkg/models"
)

// Suite is a named collection of test cases.
type Suite struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// System is a default system prompt applied to cases that do not set
	// their own.
	System string            `json:"system,omitempty" yaml:"system,omitempty"`
	Cases  []models.TestCase `json:"cases" yaml:"cases"`
}

// Load reads a suite from path, picking the codec by extension: .json,
// .jsonl/.ndjson, .csv, or .yaml/.yml. A suite that does not name itself is
// named after the file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}

	var suite *Suite
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		suite, err = parseJSON(data)
	case ".jsonl", ".ndjson":
		suite, err = parseJSONL(data)
	case ".csv":
		suite, err = parseCSV(data)
	case ".yaml", ".yml":
		suite, err = parseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported suite format %q (want .json, .jsonl, .csv, or .yaml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}

	if suite.Name == "" {
		base := filepath.Base(path)
		suite.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	suite.applyDefaults()
	if err := Validate(suite); err != nil {
		return nil, fmt.Errorf("validate %s: %w", filepath.Base(path), err)
	}
	return suite, nil
}

// Validate checks the structural contract every suite must satisfy: at least
// one case, each with a non-empty name and prompt, and no duplicate names.
func Validate(suite *Suite) error {
	if suite == nil || len(suite.Cases) == 0 {
		return fmt.Errorf("suite has no cases")
	}
	seen := make(map[string]int, len(suite.Cases))
	for i := range suite.Cases {
		tc := &suite.Cases[i]
		if strings.TrimSpace(tc.Name) == "" {
			return fmt.Errorf("case %d has no name", i+1)
		}
		if strings.TrimSpace(tc.Prompt) == "" {
			return fmt.Errorf("case %q has no prompt", tc.Name)
		}
		if prev, dup := seen[tc.Name]; dup {
			return fmt.Errorf("duplicate case name %q (cases %d and %d)", tc.Name, prev, i+1)
		}
		seen[tc.Name] = i + 1
	}
	return nil
}

func (s *Suite) applyDefaults() {
	if s.System == "" {
		return
	}
	for i := range s.Cases {
		if s.Cases[i].System == "" {
			s.Cases[i].System = s.System
		}
	}
}

func parseJSON(data []byte) (*Suite, error) {
	if firstByte(data) == '[' {
		var cases []models.TestCase
		if err := strictJSON(data, &cases); err != nil {
			return nil, err
		}
		return &Suite{Cases: cases}, nil
	}
	var suite Suite
	if err := strictJSON(data, &suite); err != nil {
		return nil, err
	}
	return &suite, nil
}

func parseJSONL(data []byte) (*Suite, error) {
	suite := &Suite{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	// Prompts routinely exceed the default 64 KiB token limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var tc models.TestCase
		if err := strictJSON(line, &tc); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		suite.Cases = append(suite.Cases, tc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return suite, nil
}

func parseCSV(data []byte) (*Suite, error) {
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &Suite{}, nil
	}

	header := rows[0]
	suite := &Suite{}
	for rowNum, row := range rows[1:] {
		var tc models.TestCase
		for col, raw := range row {
			value := strings.TrimSpace(raw)
			if value == "" {
				continue
			}
			column := strings.ToLower(strings.TrimSpace(header[col]))
			if err := setField(&tc, column, value); err != nil {
				// Data rows start on line 2.
				return nil, fmt.Errorf("row %d: %w", rowNum+2, err)
			}
		}
		suite.Cases = append(suite.Cases, tc)
	}
	return suite, nil
}

// setField maps one CSV cell onto a case field. List-valued columns split on
// "|" so a single cell can hold several expectations.
func setField(tc *models.TestCase, column, value string) error {
	switch column {
	case "name":
		tc.Name = value
	case "prompt":
		tc.Prompt = value
	case "system":
		tc.System = value
	case "type":
		tc.Type = value
	case "expected":
		tc.Expected = value
	case "contains":
		tc.Contains = splitList(value)
	case "pattern":
		tc.Pattern = value
	case "pattern_flags":
		tc.PatternFlags = value
	case "expected_tool":
		tc.ExpectedTool = value
	case "expected_args":
		tc.ExpectedArgs = splitList(value)
	case "expected_json":
		if err := json.Unmarshal([]byte(value), &tc.ExpectedJSON); err != nil {
			return fmt.Errorf("column expected_json: %w", err)
		}
	case "similar_to":
		tc.SimilarTo = value
	case "similarity_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("column similarity_threshold: %w", err)
		}
		tc.SimilarityThreshold = f
	case "safety":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("column safety: %w", err)
		}
		tc.Safety = b
	case "safety_patterns":
		tc.SafetyPatterns = splitList(value)
	case "criteria":
		tc.Criteria = value
	case "reference":
		tc.Reference = value
	case "schema":
		tc.Schema = value
	case "evaluator":
		tc.Evaluator = value
	case "temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("column temperature: %w", err)
		}
		tc.Temperature = &f
	case "max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("column max_tokens: %w", err)
		}
		tc.MaxTokens = n
	default:
		return fmt.Errorf("unknown column %q", column)
	}
	return nil
}

func splitList(value string) models.StringList {
	parts := strings.Split(value, "|")
	out := make(models.StringList, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseYAML(data []byte) (*Suite, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return &Suite{}, nil
	}

	if doc.Content[0].Kind == yaml.SequenceNode {
		var cases []models.TestCase
		if err := strictYAML(data, &cases); err != nil {
			return nil, err
		}
		return &Suite{Cases: cases}, nil
	}
	var suite Suite
	if err := strictYAML(data, &suite); err != nil {
		return nil, err
	}
	return &suite, nil
}

// strictYAML decodes with KnownFields so typos in field names surface as
// load errors instead of silently dropped expectations.
func strictYAML(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func strictJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func firstByte(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}
