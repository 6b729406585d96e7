// Package render turns job results into text for human inspection.
//
// Results are treated as opaque trees: no field is assumed to exist, and
// whatever the server sends is displayed rather than rejected.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// NoResult is shown when the job carried no payload.
const NoResult = "(no result)"

// Render formats a raw JSON result as an indented tree, e.g. "score: 0.92".
// Key order and scalar text are kept exactly as received. Input that does
// not parse is returned verbatim.
func Render(raw []byte) (out string) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return NoResult
	}

	defer func() {
		if r := recover(); r != nil {
			out = string(raw)
		}
	}()

	var doc yaml.Node
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return string(raw)
	}
	blockStyle(&doc)

	text, err := encode(&doc)
	if err != nil {
		return string(raw)
	}
	return text
}

// Value formats an already-decoded tree the same way Render does.
func Value(v any) (out string) {
	if v == nil {
		return NoResult
	}

	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprint(v)
		}
	}()

	text, err := encode(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return text
}

func encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// blockStyle drops the flow and quoting styles the JSON input implies so
// the tree prints as nested blocks. Strings that would read back as another
// type (e.g. "true", "0.5") keep their quotes.
func blockStyle(n *yaml.Node) {
	switch n.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		if len(n.Content) > 0 {
			n.Style = 0
		}
	case yaml.ScalarNode:
		if n.Tag == "!!str" && n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
			n.Style = 0
		}
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}
