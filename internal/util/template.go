package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	},
	"join": func(sep string, items any) string {
		switch v := items.(type) {
		case []string:
			return strings.Join(v, sep)
		case []any:
			strItems := make([]string, len(v))
			for i, item := range v {
				strItems[i] = fmt.Sprintf("%v", item)
			}
			return strings.Join(strItems, sep)
		}
		return fmt.Sprintf("%v", items)
	},
}

// Template is a parsed prompt template. A template without markers renders
// its text unchanged.
type Template struct {
	text string
	tmpl *template.Template
}

// ParseTemplate compiles text. Missing keys render as empty strings.
func ParseTemplate(name, text string) (*Template, error) {
	t := &Template{text: text}
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return t, nil
	}
	tmpl, err := template.New(name).Option("missingkey=zero").Funcs(funcs).Parse(text)
	if err != nil {
		return nil, err
	}
	t.tmpl = tmpl
	return t, nil
}

// Render executes the template against data.
func (t *Template) Render(data map[string]any) (string, error) {
	if t == nil {
		return "", nil
	}
	if t.tmpl == nil {
		return t.text, nil
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderTemplate parses and renders text in one step.
func RenderTemplate(text string, data map[string]any) (string, error) {
	t, err := ParseTemplate("prompt", text)
	if err != nil {
		return "", err
	}
	return t.Render(data)
}
