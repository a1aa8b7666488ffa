package jar

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// maxLineBytes is the manifest line length limit, excluding the line break.
const maxLineBytes = 72

// Attr is one manifest attribute.
type Attr struct {
	Name  string
	Value string
}

// Manifest is a parsed META-INF/MANIFEST.MF. Attribute order is preserved
// so rewriting a manifest only changes what was set.
type Manifest struct {
	Main     []Attr
	Sections [][]Attr
}

// ParseManifest parses manifest text. Continuation lines (starting with a
// single space) are joined onto the previous attribute. Malformed lines are
// skipped.
func ParseManifest(data []byte) *Manifest {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	m := &Manifest{}
	var cur []Attr
	inMain := true
	flush := func() {
		if inMain {
			m.Main = cur
			inMain = false
		} else if len(cur) > 0 {
			m.Sections = append(m.Sections, cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(text, "\n") {
		switch {
		case line == "":
			if inMain || len(cur) > 0 {
				flush()
			}
		case line[0] == ' ':
			if n := len(cur); n > 0 {
				cur[n-1].Value += line[1:]
			}
		default:
			name, value, ok := strings.Cut(line, ":")
			if !ok || name == "" {
				continue
			}
			cur = append(cur, Attr{Name: name, Value: strings.TrimPrefix(value, " ")})
		}
	}
	if inMain || len(cur) > 0 {
		flush()
	}
	return m
}

// Get returns the main-section value of name, matched case-insensitively.
func (m *Manifest) Get(name string) string {
	for _, a := range m.Main {
		if strings.EqualFold(a.Name, name) {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// Set replaces or appends a main-section attribute.
func (m *Manifest) Set(name, value string) {
	for i, a := range m.Main {
		if strings.EqualFold(a.Name, name) {
			m.Main[i].Value = value
			return
		}
	}
	m.Main = append(m.Main, Attr{Name: name, Value: value})
}

// Bytes encodes the manifest with CRLF line breaks and 72-byte line wrapping.
// Manifest-Version is always written first.
func (m *Manifest) Bytes() []byte {
	var buf bytes.Buffer

	version := m.Get("Manifest-Version")
	if version == "" {
		version = "1.0"
	}
	writeAttr(&buf, Attr{Name: "Manifest-Version", Value: version})
	for _, a := range m.Main {
		if strings.EqualFold(a.Name, "Manifest-Version") {
			continue
		}
		writeAttr(&buf, a)
	}
	buf.WriteString("\r\n")

	for _, sec := range m.Sections {
		for _, a := range sec {
			writeAttr(&buf, a)
		}
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

func writeAttr(buf *bytes.Buffer, a Attr) {
	line := a.Name + ": " + a.Value
	limit := maxLineBytes
	for len(line) > limit {
		cut := limit
		// Never split a multi-byte character.
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		buf.WriteString(line[:cut])
		buf.WriteString("\r\n ")
		line = line[cut:]
		limit = maxLineBytes - 1
	}
	buf.WriteString(line)
	buf.WriteString("\r\n")
}
