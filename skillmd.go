package agentrt

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"
)

// NormalizeSkillName NFC-normalizes a skill or tool name before it is used
// as a registry key, so names entered in different Unicode normal forms
// (e.g. a composed vs. decomposed accent) still collide correctly.
// Grounded on the x/text stack the corpus otherwise has no consumer for.
func NormalizeSkillName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ParseSkillMarkdown parses a SKILL.md-style file: a `---`-delimited
// front-matter block of `key: value` pairs (name, description, tags,
// tools, dependencies — the list-valued keys are comma-separated),
// followed by a Markdown body whose rendered plain text becomes the
// skill's Instructions. Grounded on frontend/telegram/markdown.go's
// goldmark-AST-walk idiom, adapted from HTML rendering to plain-text
// extraction.
func ParseSkillMarkdown(data []byte) (Skill, error) {
	frontMatter, body, err := splitFrontMatter(data)
	if err != nil {
		return Skill{}, err
	}

	fields := parseFrontMatterFields(frontMatter)
	s := Skill{
		Name:        NormalizeSkillName(fields["name"]),
		Description: fields["description"],
	}
	if s.Name == "" {
		return Skill{}, fmt.Errorf("agentrt: SKILL.md missing required 'name' field")
	}
	if tags := fields["tags"]; tags != "" {
		s.Tags = splitCSV(tags)
	}
	if tools := fields["tools"]; tools != "" {
		s.Tools = splitCSV(tools)
	}
	if deps := fields["dependencies"]; deps != "" {
		s.Dependencies = splitCSV(deps)
	}

	s.Instructions = renderPlainText(body)
	return s, nil
}

func splitFrontMatter(data []byte) (frontMatter, body []byte, err error) {
	trimmed := bytes.TrimLeft(data, "\n")
	if !bytes.HasPrefix(trimmed, []byte("---")) {
		return nil, data, nil
	}
	rest := trimmed[3:]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, nil, fmt.Errorf("agentrt: SKILL.md front matter not terminated with '---'")
	}
	frontMatter = bytes.TrimSpace(rest[:end])
	afterMarker := rest[end+4:]
	if i := bytes.IndexByte(afterMarker, '\n'); i >= 0 {
		body = afterMarker[i+1:]
	}
	return frontMatter, body, nil
}

func parseFrontMatterFields(fm []byte) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(string(fm), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return fields
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// renderPlainText walks the goldmark AST for body and concatenates every
// text node, separating block-level nodes with blank lines.
func renderPlainText(body []byte) string {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))

	var out strings.Builder
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		switch v := n.(type) {
		case *ast.Text:
			out.Write(v.Segment.Value(body))
			if v.SoftLineBreak() || v.HardLineBreak() {
				out.WriteByte('\n')
			}
			return
		case *ast.FencedCodeBlock:
			for i := 0; i < v.Lines().Len(); i++ {
				seg := v.Lines().At(i)
				out.Write(seg.Value(body))
			}
			out.WriteString("\n\n")
			return
		case *ast.CodeBlock:
			for i := 0; i < v.Lines().Len(); i++ {
				seg := v.Lines().At(i)
				out.Write(seg.Value(body))
			}
			out.WriteString("\n\n")
			return
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
		switch n.Kind() {
		case ast.KindParagraph, ast.KindHeading, ast.KindListItem:
			out.WriteString("\n\n")
		}
	}
	walk(root)
	return strings.TrimSpace(out.String())
}
