package aqua

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire format:
//
//	"text"                                      string
//	{"class":C,"init":I,"ivars":{...}}          typed (ivars optional)
//	{"class":C,"ivars":{...}}                   plain (ivars omitted when empty)
//	{"class":"Stub","init":{"class":C,"id":ID,"methods":{...}}}
//	{"class":"FileStub","init":{"id":NAME,"methods":{...}}}
//
// Init payloads are a string, a JSON array of nodes or a JSON object of nodes.

func (n *Node) MarshalJSON() ([]byte, error) {
	return n.appendJSON(nil)
}

func (n *Node) appendJSON(buf []byte) ([]byte, error) {
	if n == nil {
		return nil, fmt.Errorf("cannot encode nil node")
	}
	var err error
	switch n.Kind {
	case KindString:
		return appendJSONString(buf, n.Str), nil
	case KindList:
		buf = append(buf, '[')
		for i, item := range n.Items {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf, err = item.appendJSON(buf)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	case KindMap:
		return appendJSONFields(buf, n.Entries)
	case KindTyped:
		buf = append(buf, `{"class":`...)
		buf = appendJSONString(buf, n.Class)
		buf = append(buf, `,"init":`...)
		if n.Init == nil {
			return nil, fmt.Errorf("typed node %s has no init", n.Class)
		}
		buf, err = n.Init.appendJSON(buf)
		if err != nil {
			return nil, err
		}
		if fieldsLen(n.Ivars) > 0 {
			buf = append(buf, `,"ivars":`...)
			buf, err = appendJSONFields(buf, n.Ivars)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil
	case KindPlain:
		buf = append(buf, `{"class":`...)
		buf = appendJSONString(buf, n.Class)
		if fieldsLen(n.Ivars) > 0 {
			buf = append(buf, `,"ivars":`...)
			buf, err = appendJSONFields(buf, n.Ivars)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil
	case KindStub:
		buf = append(buf, `{"class":"Stub","init":{"class":`...)
		buf = appendJSONString(buf, n.Class)
		buf = append(buf, `,"id":`...)
		buf = appendJSONString(buf, n.ID)
		buf = append(buf, `,"methods":`...)
		buf, err = appendJSONFields(buf, n.Methods)
		if err != nil {
			return nil, err
		}
		return append(buf, "}}"...), nil
	case KindFileStub:
		buf = append(buf, `{"class":"FileStub","init":{"id":`...)
		buf = appendJSONString(buf, n.ID)
		buf = append(buf, `,"methods":`...)
		buf, err = appendJSONFields(buf, n.Methods)
		if err != nil {
			return nil, err
		}
		return append(buf, "}}"...), nil
	default:
		return nil, fmt.Errorf("cannot encode node of %v", n.Kind)
	}
}

func appendJSONFields(buf []byte, fields *Fields) ([]byte, error) {
	buf = append(buf, '{')
	if fields != nil {
		first := true
		var err error
		for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				buf = append(buf, ',')
			}
			first = false
			buf = appendJSONString(buf, pair.Key)
			buf = append(buf, ':')
			buf, err = pair.Value.appendJSON(buf)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", pair.Key, err)
			}
		}
	}
	return append(buf, '}'), nil
}

func appendJSONString(buf []byte, s string) []byte {
	raw, err := json.Marshal(s)
	if err != nil {
		panic(err) // strings always encode
	}
	return append(buf, raw...)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	dn, err := decodeNodeJSON(data)
	if err != nil {
		return err
	}
	*n = *dn
	return nil
}

// ParseNode decodes a packed document from its JSON form.
func ParseNode(data []byte) (*Node, error) {
	return decodeNodeJSON(data)
}

type rawEntry struct {
	key   string
	value json.RawMessage
}

func decodeNodeJSON(data []byte) (*Node, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, dataErrf(data, 0, nil, "empty node")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, dataErrf(data, 0, err, "invalid string node")
		}
		return StringNode(s), nil
	case '[':
		return decodeListJSON(data)
	case '{':
	default:
		return nil, dataErrf(data, 0, nil, "unexpected JSON value in node position")
	}

	entries, err := decodeObjectJSON(data)
	if err != nil {
		return nil, err
	}
	var class, init, ivars json.RawMessage
	for _, e := range entries {
		switch e.key {
		case "class":
			class = e.value
		case "init":
			init = e.value
		case "ivars":
			ivars = e.value
		default:
			return nil, dataErrf(data, 0, nil, "unexpected key %q in node", e.key)
		}
	}
	if class == nil {
		return nil, dataErrf(data, 0, nil, "node has no class")
	}
	var className string
	if err := json.Unmarshal(class, &className); err != nil {
		return nil, dataErrf(data, 0, err, "invalid class")
	}

	switch className {
	case stubClass:
		return decodeStubJSON(init, false)
	case fileStubClass:
		return decodeStubJSON(init, true)
	}

	var n *Node
	if init != nil {
		initNode, err := decodeInitJSON(init)
		if err != nil {
			return nil, fmt.Errorf("%s.init: %w", className, err)
		}
		n = TypedNode(className, initNode)
	} else {
		n = PlainNode(className)
	}
	if ivars != nil {
		n.Ivars, err = decodeFieldsJSON(ivars)
		if err != nil {
			return nil, fmt.Errorf("%s.ivars: %w", className, err)
		}
		if n.Ivars.Len() == 0 {
			n.Ivars = nil
		}
	}
	return n, nil
}

func decodeInitJSON(data json.RawMessage) (*Node, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		fields, err := decodeFieldsJSON(data)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindMap, Entries: fields}, nil
	}
	return decodeNodeJSON(data)
}

func decodeListJSON(data []byte) (*Node, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, dataErrf(data, 0, err, "invalid list")
	}
	n := ListNode()
	n.Items = make([]*Node, 0, len(raws))
	for i, raw := range raws {
		item, err := decodeNodeJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		n.Items = append(n.Items, item)
	}
	return n, nil
}

func decodeStubJSON(init json.RawMessage, file bool) (*Node, error) {
	if init == nil {
		return nil, dataErrf(nil, 0, nil, "stub has no init")
	}
	entries, err := decodeObjectJSON(init)
	if err != nil {
		return nil, err
	}
	var n *Node
	if file {
		n = FileStubNode("")
	} else {
		n = StubNode("", "")
	}
	for _, e := range entries {
		switch e.key {
		case "class":
			if err := json.Unmarshal(e.value, &n.Class); err != nil {
				return nil, dataErrf(e.value, 0, err, "invalid stub class")
			}
		case "id":
			if err := json.Unmarshal(e.value, &n.ID); err != nil {
				return nil, dataErrf(e.value, 0, err, "invalid stub id")
			}
		case "methods":
			n.Methods, err = decodeFieldsJSON(e.value)
			if err != nil {
				return nil, fmt.Errorf("methods: %w", err)
			}
		default:
			return nil, dataErrf(init, 0, nil, "unexpected key %q in stub", e.key)
		}
	}
	if file {
		n.Class = ""
	} else if n.Class == "" {
		return nil, dataErrf(init, 0, nil, "stub has no class")
	}
	return n, nil
}

func decodeFieldsJSON(data []byte) (*Fields, error) {
	entries, err := decodeObjectJSON(data)
	if err != nil {
		return nil, err
	}
	fields := newFields()
	for _, e := range entries {
		child, err := decodeNodeJSON(e.value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.key, err)
		}
		fields.Set(e.key, child)
	}
	return fields, nil
}

// decodeObjectJSON splits a JSON object into its entries, preserving order.
func decodeObjectJSON(data []byte) ([]rawEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, dataErrf(data, 0, err, "invalid object")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, dataErrf(data, 0, nil, "expected object")
	}
	var entries []rawEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, dataErrf(data, int(dec.InputOffset()), err, "invalid object key")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, dataErrf(data, int(dec.InputOffset()), nil, "expected object key")
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, dataErrf(data, int(dec.InputOffset()), err, "invalid value of %q", key)
		}
		entries = append(entries, rawEntry{key, value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, dataErrf(data, int(dec.InputOffset()), err, "unterminated object")
	}
	return entries, nil
}
