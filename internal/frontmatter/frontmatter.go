// Package frontmatter extracts the tags field from a note's YAML frontmatter.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// headLimit bounds how much of a note is inspected for frontmatter.
// Frontmatter always sits at the top of the file, so large bodies never
// need to be scanned.
const headLimit = 2048

// tagValue is the parse boundary for the loosely-typed frontmatter "tags"
// field: absent, a single scalar, or a list. It is resolved to a normalized
// []string before it reaches the index.
type tagValue struct {
	present bool
	scalar  string
	list    []string
}

func (v *tagValue) UnmarshalYAML(node *yaml.Node) error {
	v.present = true
	switch node.Kind {
	case yaml.ScalarNode:
		v.scalar = node.Value
	case yaml.SequenceNode:
		for _, item := range node.Content {
			// Coerce every element to its string form.
			v.list = append(v.list, item.Value)
		}
	default:
		return fmt.Errorf("frontmatter: unsupported tags value")
	}
	return nil
}

// normalize resolves the union to a flat tag list, dropping blanks.
func (v *tagValue) normalize() []string {
	if !v.present {
		return nil
	}
	var out []string
	if v.list == nil {
		if s := strings.TrimSpace(v.scalar); s != "" {
			out = append(out, s)
		}
		return out
	}
	for _, t := range v.list {
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ExtractTags returns the tags declared in the frontmatter block at the top
// of content. Missing or malformed frontmatter, or a missing tags field,
// yields nil. It never fails: absence of tags is a normal case, not an error.
func ExtractTags(content []byte) []string {
	if len(content) > headLimit {
		content = content[:headLimit]
	}
	block, ok := frontmatterBlock(content)
	if !ok {
		return nil
	}
	var doc struct {
		Tags tagValue `yaml:"tags"`
	}
	if err := yaml.Unmarshal(block, &doc); err != nil {
		return nil
	}
	return doc.Tags.normalize()
}

// frontmatterBlock returns the YAML between the leading --- delimiters.
func frontmatterBlock(data []byte) ([]byte, bool) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, false
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter within the inspected head.
		return nil, false
	}
	return rest[:idx], true
}
