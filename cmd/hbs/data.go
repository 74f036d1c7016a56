package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/deepnoodle-ai/hbs/vm"
)

// loadData reads a YAML or JSON file. Mappings become ordered maps so
// templates iterate them in file order.
func loadData(path string) (any, error) {
	if path == "" {
		return nil, nil
	}
	var src []byte
	var err error
	if path == "-" {
		src, err = readStdin()
	} else {
		src, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return parseData(src)
}

func parseData(src []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("parsing data: %w", err)
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	return nodeValue(&doc)
}

func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		m := vm.NewOrderedMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if key.Tag == "!!merge" {
				merged, err := nodeValue(val)
				if err != nil {
					return nil, err
				}
				if om, ok := merged.(*vm.OrderedMap); ok {
					for _, k := range om.Keys() {
						v, _ := om.Get(k)
						m.Set(k, v)
					}
				}
				continue
			}
			v, err := nodeValue(val)
			if err != nil {
				return nil, err
			}
			m.Set(key.Value, v)
		}
		return m, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := nodeValue(item)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
}
