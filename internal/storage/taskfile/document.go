package taskfile

import (
	"strings"
)

// delimiter is the metadata block fence line.
const delimiter = "---"

// Field is one line of the metadata block. Raw holds the original line so
// untouched fields round-trip byte-identical; Key is empty for lines that do
// not parse as "key: value" (they are preserved verbatim).
type Field struct {
	Key   string
	Value string
	Raw   string
}

// Document is a task document split into an ordered metadata field bag and a
// verbatim body. Encoding is a pure function of (fields, body), which
// guarantees the merge-not-overwrite round-trip contract.
type Document struct {
	Fields []Field
	Body   string

	hadMetadata bool
}

// ParseDocument splits a raw task document into metadata fields and body.
// It never fails: documents without a (well-formed) metadata block yield an
// empty field bag and the full content as body.
func ParseDocument(raw string) Document {
	rest, ok := strings.CutPrefix(raw, delimiter+"\n")
	if !ok {
		return Document{Body: raw}
	}

	var fields []Field
	for rest != "" {
		line, remainder, found := strings.Cut(rest, "\n")
		if line == delimiter {
			return Document{Fields: fields, Body: remainder, hadMetadata: true}
		}
		if !found {
			// Opening fence without a closing one: treat as plain body.
			break
		}
		fields = append(fields, parseField(line))
		rest = remainder
	}

	return Document{Body: raw}
}

func parseField(line string) Field {
	key, value, ok := strings.Cut(line, ":")
	if !ok || strings.TrimSpace(key) == "" {
		return Field{Raw: line}
	}
	return Field{
		Key:   strings.TrimSpace(key),
		Value: strings.TrimSpace(value),
		Raw:   line,
	}
}

// Encode serializes the document back into its file form. Fields keep their
// original order and raw text; the body is written verbatim.
func (d Document) Encode() string {
	if len(d.Fields) == 0 && !d.hadMetadata {
		return d.Body
	}

	var b strings.Builder
	b.WriteString(delimiter + "\n")
	for _, f := range d.Fields {
		b.WriteString(f.Raw)
		b.WriteString("\n")
	}
	b.WriteString(delimiter + "\n")
	b.WriteString(d.Body)
	return b.String()
}

// Get returns the value of the first field with the given key.
func (d Document) Get(key string) (string, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces the value of an existing field in place, or appends a new field
// at the end of the metadata block.
func (d *Document) Set(key, value string) {
	for i, f := range d.Fields {
		if f.Key == key {
			d.Fields[i].Value = value
			d.Fields[i].Raw = key + ": " + value
			return
		}
	}
	d.Fields = append(d.Fields, Field{Key: key, Value: value, Raw: key + ": " + value})
}

// Remove deletes the first field with the given key. Removing an absent key
// is a no-op.
func (d *Document) Remove(key string) {
	for i, f := range d.Fields {
		if f.Key == key {
			d.Fields = append(d.Fields[:i], d.Fields[i+1:]...)
			return
		}
	}
}
