package main

import (
	"gopkg.in/yaml.v3"

	aqua "github.com/baccigalupi/aqua-sub000"
)

// nodeYAML renders a packed tree with the same shape as its JSON form, keeping
// field order.
func nodeYAML(n *aqua.Node) *yaml.Node {
	switch n.Kind {
	case aqua.KindString:
		return scalar(n.Str)
	case aqua.KindList:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range n.Items {
			seq.Content = append(seq.Content, nodeYAML(item))
		}
		return seq
	case aqua.KindMap:
		return fieldsYAML(n.Entries)
	case aqua.KindTyped:
		m := mapping("class", scalar(n.Class), "init", nodeYAML(n.Init))
		if n.Ivars != nil && n.Ivars.Len() > 0 {
			m.Content = append(m.Content, scalar("ivars"), fieldsYAML(n.Ivars))
		}
		return m
	case aqua.KindPlain:
		m := mapping("class", scalar(n.Class))
		if n.Ivars != nil && n.Ivars.Len() > 0 {
			m.Content = append(m.Content, scalar("ivars"), fieldsYAML(n.Ivars))
		}
		return m
	case aqua.KindStub:
		return mapping("class", scalar("Stub"), "init",
			mapping("class", scalar(n.Class), "id", scalar(n.ID), "methods", fieldsYAML(n.Methods)))
	case aqua.KindFileStub:
		return mapping("class", scalar("FileStub"), "init",
			mapping("id", scalar(n.ID), "methods", fieldsYAML(n.Methods)))
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

func fieldsYAML(fields *aqua.Fields) *yaml.Node {
	m := mapping()
	if fields == nil {
		return m
	}
	for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
		m.Content = append(m.Content, scalar(pair.Key), nodeYAML(pair.Value))
	}
	return m
}

// mapping builds a mapping node from alternating keys and values.
func mapping(kv ...any) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i < len(kv); i += 2 {
		m.Content = append(m.Content, scalar(kv[i].(string)), kv[i+1].(*yaml.Node))
	}
	return m
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
