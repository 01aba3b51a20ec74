package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/net/html/charset"
)

// TextKey holds element text when the element also carries attributes or
// child elements and so cannot collapse to a plain string.
const TextKey = "#text"

type treeFrame struct {
	name string
	obj  Object
	text strings.Builder
}

// ParseTree converts a markup document into nested Objects. Attributes and
// child elements become fields, text-only elements collapse to strings and
// empty elements become "". A tag listed in repeatable is always a []any;
// any other tag becomes a []any on its second occurrence under the same
// parent, keeping the first value in place.
func ParseTree(data []byte, repeatable []string) (Object, error) {
	repeat := make(map[string]bool, len(repeatable))
	for _, tag := range repeatable {
		repeat[tag] = true
	}

	p := xpp.NewXMLPullParser(bytes.NewReader(data), true, charset.NewReaderLabel)

	root := Object{}
	stack := []*treeFrame{{obj: root}}
	sawElement := false

	for {
		event, err := p.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to parse markup: %w", err)
		}

		switch event {
		case xpp.StartTag:
			frame := &treeFrame{name: p.Name, obj: Object{}}
			for _, attr := range p.Attrs {
				frame.obj[attrName(attr)] = attr.Value
			}
			stack = append(stack, frame)
			sawElement = true

		case xpp.Text:
			stack[len(stack)-1].text.WriteString(p.Text)

		case xpp.EndTag:
			frame := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			addChild(stack[len(stack)-1].obj, frame.name, frame.value(), repeat)

		case xpp.EndDocument:
			if !sawElement {
				return nil, errors.New("failed to parse markup: document has no root element")
			}
			return root, nil
		}
	}
}

func (f *treeFrame) value() any {
	text := f.text.String()
	hasText := strings.TrimSpace(text) != ""

	if len(f.obj) == 0 {
		if hasText {
			return text
		}
		return ""
	}

	if hasText {
		f.obj[TextKey] = text
	}
	return f.obj
}

func addChild(parent Object, name string, value any, repeat map[string]bool) {
	existing, ok := parent[name]
	switch {
	case !ok && repeat[name]:
		parent[name] = []any{value}
	case !ok:
		parent[name] = value
	default:
		if list, isList := existing.([]any); isList {
			parent[name] = append(list, value)
		} else {
			parent[name] = []any{existing, value}
		}
	}
}

func attrName(attr xml.Attr) string {
	if attr.Name.Space == "xmlns" {
		return "xmlns:" + attr.Name.Local
	}
	return attr.Name.Local
}

// WriteTree serializes a tree produced by ParseTree back into markup. Fields
// are written as child elements in key order, so attributes come back as
// elements: content survives the round trip, the attribute/element
// distinction does not.
func WriteTree(w io.Writer, tree Object) error {
	var buf bytes.Buffer
	writeFields(&buf, tree)
	_, err := w.Write(buf.Bytes())
	return err
}

func writeFields(buf *bytes.Buffer, obj Object) {
	if text, ok := obj[TextKey].(string); ok {
		xml.EscapeText(buf, []byte(text))
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		if key != TextKey {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	for _, key := range keys {
		if list, ok := obj[key].([]any); ok {
			for _, item := range list {
				writeElement(buf, key, item)
			}
			continue
		}
		writeElement(buf, key, obj[key])
	}
}

func writeElement(buf *bytes.Buffer, tag string, value any) {
	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")

	switch v := value.(type) {
	case string:
		xml.EscapeText(buf, []byte(v))
	case Object:
		writeFields(buf, v)
	}

	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">")
}

// Lookup resolves a dotted path through nested Objects.
func Lookup(obj Object, path string) (any, bool) {
	var current any = obj
	for _, part := range strings.Split(path, ".") {
		next, ok := current.(Object)
		if !ok {
			return nil, false
		}
		current, ok = next[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// objectList flattens the value found at a record path into a list of
// Objects. A single Object counts as a one-element list and an empty element
// as no records.
func objectList(value any) []Object {
	switch v := value.(type) {
	case Object:
		return []Object{v}
	case []any:
		objects := make([]Object, 0, len(v))
		for _, item := range v {
			if obj, ok := item.(Object); ok {
				objects = append(objects, obj)
			}
		}
		return objects
	default:
		return nil
	}
}
