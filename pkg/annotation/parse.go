// Package annotation turns VOC-style annotation XML into nested maps and
// reads the split files that list example identifiers.
package annotation

import (
	"fmt"

	"github.com/beevik/etree"
)

// ObjectTag is the one tag assumed repeatable at a single tree level.
// Repeated occurrences of any other tag keep only the last one.
const ObjectTag = "object"

// ParseElement recursively converts an element tree into a nested map.
//
// A leaf element maps its tag to its text. An element with children maps its
// tag to a map of child results; "object" children accumulate into a slice
// in document order. Known limitation carried over from the annotation
// format: a repeated non-object tag at the same level silently overwrites
// the earlier value. Use ParseElementStrict to reject such input instead.
func ParseElement(el *etree.Element) map[string]any {
	children := el.ChildElements()
	if len(children) == 0 {
		return map[string]any{el.Tag: el.Text()}
	}
	result := make(map[string]any)
	for _, child := range children {
		parsed := ParseElement(child)
		if child.Tag == ObjectTag {
			objs, _ := result[ObjectTag].([]any)
			result[ObjectTag] = append(objs, parsed[ObjectTag])
			continue
		}
		result[child.Tag] = parsed[child.Tag]
	}
	return map[string]any{el.Tag: result}
}

// ParseElementStrict behaves like ParseElement but returns an error when a
// non-object tag repeats at the same tree level.
func ParseElementStrict(el *etree.Element) (map[string]any, error) {
	children := el.ChildElements()
	if len(children) == 0 {
		return map[string]any{el.Tag: el.Text()}, nil
	}
	result := make(map[string]any)
	for _, child := range children {
		parsed, err := ParseElementStrict(child)
		if err != nil {
			return nil, err
		}
		if child.Tag == ObjectTag {
			objs, _ := result[ObjectTag].([]any)
			result[ObjectTag] = append(objs, parsed[ObjectTag])
			continue
		}
		if _, dup := result[child.Tag]; dup {
			return nil, fmt.Errorf("annotation: duplicate tag %q under <%s>", child.Tag, el.Tag)
		}
		result[child.Tag] = parsed[child.Tag]
	}
	return map[string]any{el.Tag: result}, nil
}

// ParseFile reads an annotation XML file and parses its root element.
func ParseFile(path string) (map[string]any, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("annotation: read %s: %w", path, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("annotation: %s has no root element", path)
	}
	return ParseElement(root), nil
}

// Objects extracts the object entries from a parsed annotation. The input
// is the single-entry map returned by ParseElement for the document root.
func Objects(parsed map[string]any) []map[string]any {
	for _, v := range parsed {
		body, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		raw, ok := body[ObjectTag].([]any)
		if !ok {
			return nil
		}
		objs := make([]map[string]any, 0, len(raw))
		for _, o := range raw {
			if m, ok := o.(map[string]any); ok {
				objs = append(objs, m)
			}
		}
		return objs
	}
	return nil
}

// Text descends into a parsed annotation body along the given keys and
// returns the leaf text, or "" when the path is absent.
func Text(body map[string]any, keys ...string) string {
	cur := any(body)
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[k]
		if !ok {
			return ""
		}
	}
	s, _ := cur.(string)
	return s
}
