package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"unitymcp/internal/envelope"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatHuman OutputFormat = "human"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatHuman:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (valid: json, yaml, human)", s)
	}
}

// FormatResult renders an action result.
func FormatResult(result *envelope.Result, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(result)
	case FormatYAML:
		return formatYAML(result)
	case FormatHuman:
		return formatResultHuman(result)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// FormatValue renders any JSON-serializable value; human output is YAML.
func FormatValue(v interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(v)
	case FormatYAML, FormatHuman:
		return formatYAML(v)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatYAML goes through JSON first so custom MarshalJSON methods and json
// tags decide the field names.
func formatYAML(v interface{}) (string, error) {
	generic, err := toGeneric(v)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func toGeneric(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}

var (
	okMark    = color.New(color.FgGreen, color.Bold).SprintFunc()
	failMark  = color.New(color.FgRed, color.Bold).SprintFunc()
	warnColor = color.New(color.FgYellow).SprintFunc()
	errColor  = color.New(color.FgRed).SprintFunc()
	dimColor  = color.New(color.Faint).SprintFunc()
)

func formatResultHuman(result *envelope.Result) (string, error) {
	var b strings.Builder

	if result.Success {
		b.WriteString(okMark("✓ ") + result.Message + "\n")
	} else {
		b.WriteString(failMark("✗ ") + result.Message + "\n")
	}

	if result.Data == nil {
		return strings.TrimRight(b.String(), "\n"), nil
	}

	generic, err := toGeneric(result.Data)
	if err != nil {
		return "", err
	}
	data, ok := generic.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected result data %T", generic)
	}

	// The wait result nests the final snapshot.
	if final, ok := data["finalStatus"].(map[string]interface{}); ok {
		b.WriteString(fmt.Sprintf("  Waited %.1fs over %v polls\n", number(data["waitTime"]), data["polls"]))
		data = final
	}

	if last, ok := data["lastStatus"].(map[string]interface{}); ok {
		b.WriteString(fmt.Sprintf("  Last status: %v\n", last["status"]))
	}
	if status, ok := data["status"].(string); ok {
		b.WriteString(fmt.Sprintf("  Status: %s\n", status))
	}
	writeDiagnostics(&b, "Errors", data["errors"], errColor)
	writeDiagnostics(&b, "Warnings", data["warnings"], warnColor)

	var extras []string
	for key := range data {
		switch key {
		case "status", "errors", "warnings", "isCompiling", "isUpdating", "lastStatus",
			"hasErrors", "hasWarnings", "errorCount", "warningCount":
			continue
		}
		extras = append(extras, key)
	}
	sort.Strings(extras)
	for _, key := range extras {
		b.WriteString(fmt.Sprintf("  %s: %v\n", key, data[key]))
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

func writeDiagnostics(b *strings.Builder, title string, raw interface{}, paint func(...interface{}) string) {
	list, ok := raw.([]interface{})
	if !ok {
		return
	}
	b.WriteString(fmt.Sprintf("  %s (%d):\n", title, len(list)))
	for _, item := range list {
		d, _ := item.(map[string]interface{})
		location := fmt.Sprint(d["file"])
		if line, _ := d["line"].(string); line != "" {
			location += ":" + line
		}
		if location == "" || location == "<nil>" {
			location = "(no file)"
		}
		b.WriteString(fmt.Sprintf("    %s %s\n", paint(location), d["message"]))
		if trace, _ := d["stackTrace"].(string); trace != "" {
			for _, line := range strings.Split(strings.TrimRight(trace, "\n"), "\n") {
				b.WriteString("      " + dimColor(line) + "\n")
			}
		}
	}
}

func number(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
