package bytecode

import (
	"encoding/json"
	"fmt"

	"github.com/deepnoodle-ai/hbs/compiler"
	"github.com/deepnoodle-ai/hbs/op"
)

// Marshal converts a Template into its JSON representation.
func Marshal(t *Template) ([]byte, error) {
	state, err := stateFromTemplate(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(state)
}

// Unmarshal converts a JSON representation into a Template and validates
// its instructions. The revision is not validated here; see PeekRevision.
func Unmarshal(data []byte) (*Template, error) {
	var state templateState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	t, err := templateFromState(&state)
	if err != nil {
		return nil, err
	}
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// PeekRevision reads only the revision of a marshaled template, so it can be
// validated before the rest of the payload is decoded.
func PeekRevision(data []byte) (Revision, error) {
	var header struct {
		Revision *Revision `json:"revision"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return Revision{}, err
	}
	if header.Revision == nil {
		// Payloads without a revision predate revision tracking.
		return Revision{Number: 1}, nil
	}
	return *header.Revision, nil
}

// Serialization types

type constantDef struct {
	Type string `json:"type"`
}

type boolConstantDef struct {
	Type  string `json:"type"`
	Value bool   `json:"value"`
}

type intConstantDef struct {
	Type  string `json:"type"`
	Value int64  `json:"value"`
}

type floatConstantDef struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

type stringConstantDef struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type locationDef struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type codeDef struct {
	Name         string            `json:"name"`
	Instructions []op.Code         `json:"instructions"`
	Constants    []json.RawMessage `json:"constants"`
	Names        []string          `json:"names,omitempty"`
	Paths        [][]string        `json:"paths,omitempty"`
	Locations    []locationDef     `json:"locations,omitempty"`
	Decorators   int               `json:"decorators"` // Index into codes array, -1 for none
	BlockParams  int               `json:"block_params,omitempty"`
	IsSimple     bool              `json:"is_simple,omitempty"`
}

type templateState struct {
	ID             string            `json:"id"`
	Revision       *Revision         `json:"revision"`
	Filename       string            `json:"filename,omitempty"`
	Source         string            `json:"source,omitempty"`
	Options        *compiler.Options `json:"options"`
	UseDepths      bool              `json:"use_depths,omitempty"`
	UseBlockParams bool              `json:"use_block_params,omitempty"`
	UsePartial     bool              `json:"use_partial,omitempty"`
	UseDecorators  bool              `json:"use_decorators,omitempty"`
	Main           int               `json:"main"`
	Programs       []int             `json:"programs,omitempty"`
	Codes          []*codeDef        `json:"codes"`
}

func stateFromTemplate(t *Template) (*templateState, error) {
	rev := t.Revision()
	state := &templateState{
		ID:             t.ID(),
		Revision:       &rev,
		Filename:       t.Filename(),
		Source:         t.Source(),
		Options:        t.Options(),
		UseDepths:      t.UseDepths(),
		UseBlockParams: t.UseBlockParams(),
		UsePartial:     t.UsePartial(),
		UseDecorators:  t.UseDecorators(),
	}
	add := func(c *Code) (int, error) {
		def, err := defFromCode(c)
		if err != nil {
			return -1, err
		}
		state.Codes = append(state.Codes, def)
		return len(state.Codes) - 1, nil
	}
	// Each code is written before its decorator stream, so that decoding
	// in reverse order builds decorator streams first.
	var addWithDecorators func(c *Code) (int, error)
	addWithDecorators = func(c *Code) (int, error) {
		idx, err := add(c)
		if err != nil {
			return -1, err
		}
		if dec := c.Decorators(); dec != nil {
			decIdx, err := add(dec)
			if err != nil {
				return -1, err
			}
			state.Codes[idx].Decorators = decIdx
		}
		return idx, nil
	}
	mainIdx, err := addWithDecorators(t.Main())
	if err != nil {
		return nil, err
	}
	state.Main = mainIdx
	for i := 0; i < t.ProgramCount(); i++ {
		idx, err := addWithDecorators(t.ProgramAt(i))
		if err != nil {
			return nil, err
		}
		state.Programs = append(state.Programs, idx)
	}
	return state, nil
}

func defFromCode(c *Code) (*codeDef, error) {
	constants := make([]json.RawMessage, c.ConstantCount())
	for i := 0; i < c.ConstantCount(); i++ {
		data, err := marshalConstant(c.ConstantAt(i))
		if err != nil {
			return nil, err
		}
		constants[i] = data
	}
	instructions := make([]op.Code, c.InstructionCount())
	for i := range instructions {
		instructions[i] = c.InstructionAt(i)
	}
	names := make([]string, c.NameCount())
	for i := range names {
		names[i] = c.NameAt(i)
	}
	paths := make([][]string, c.PathCount())
	for i := range paths {
		paths[i] = c.PathAt(i)
	}
	locations := make([]locationDef, c.LocationCount())
	for i := range locations {
		loc := c.LocationAt(i)
		locations[i] = locationDef{Line: loc.Line, Column: loc.Column}
	}
	return &codeDef{
		Name:         c.Name(),
		Instructions: instructions,
		Constants:    constants,
		Names:        names,
		Paths:        paths,
		Locations:    locations,
		Decorators:   -1,
		BlockParams:  c.BlockParams(),
		IsSimple:     c.IsSimple(),
	}, nil
}

func templateFromState(state *templateState) (*Template, error) {
	codes := make([]*Code, len(state.Codes))
	for i := len(state.Codes) - 1; i >= 0; i-- {
		def := state.Codes[i]
		if def == nil {
			return nil, fmt.Errorf("missing code definition at index %d", i)
		}
		var decorators *Code
		if def.Decorators >= 0 {
			if def.Decorators <= i || def.Decorators >= len(codes) {
				return nil, fmt.Errorf("invalid decorator index %d for code %d", def.Decorators, i)
			}
			decorators = codes[def.Decorators]
		}
		constants, err := unmarshalConstants(def.Constants)
		if err != nil {
			return nil, err
		}
		locations := make([]SourceLocation, len(def.Locations))
		for j, loc := range def.Locations {
			locations[j] = SourceLocation{Line: loc.Line, Column: loc.Column}
		}
		codes[i] = NewCode(CodeParams{
			Name:         def.Name,
			Instructions: def.Instructions,
			Constants:    constants,
			Names:        def.Names,
			Paths:        def.Paths,
			Locations:    locations,
			Decorators:   decorators,
			BlockParams:  def.BlockParams,
			IsSimple:     def.IsSimple,
		})
	}

	lookup := func(idx int) (*Code, error) {
		if idx < 0 || idx >= len(codes) {
			return nil, fmt.Errorf("invalid code index %d", idx)
		}
		return codes[idx], nil
	}
	main, err := lookup(state.Main)
	if err != nil {
		return nil, err
	}
	programs := make([]*Code, len(state.Programs))
	for i, idx := range state.Programs {
		if programs[i], err = lookup(idx); err != nil {
			return nil, err
		}
	}
	rev := Revision{Number: 1}
	if state.Revision != nil {
		rev = *state.Revision
	}
	return NewTemplate(TemplateParams{
		ID:             state.ID,
		Filename:       state.Filename,
		Source:         state.Source,
		Revision:       rev,
		Options:        state.Options,
		Main:           main,
		Programs:       programs,
		UseDepths:      state.UseDepths,
		UseBlockParams: state.UseBlockParams,
		UsePartial:     state.UsePartial,
		UseDecorators:  state.UseDecorators,
	}), nil
}

func marshalConstant(c any) (json.RawMessage, error) {
	switch v := c.(type) {
	case nil:
		return json.Marshal(constantDef{Type: "nil"})
	case bool:
		return json.Marshal(boolConstantDef{Type: "bool", Value: v})
	case int:
		return json.Marshal(intConstantDef{Type: "int", Value: int64(v)})
	case int64:
		return json.Marshal(intConstantDef{Type: "int", Value: v})
	case float64:
		return json.Marshal(floatConstantDef{Type: "float", Value: v})
	case string:
		return json.Marshal(stringConstantDef{Type: "string", Value: v})
	default:
		return nil, fmt.Errorf("unknown constant type: %T", c)
	}
}

func unmarshalConstants(data []json.RawMessage) ([]any, error) {
	constants := make([]any, len(data))
	for i, d := range data {
		c, err := unmarshalConstant(d)
		if err != nil {
			return nil, err
		}
		constants[i] = c
	}
	return constants, nil
}

func unmarshalConstant(data json.RawMessage) (any, error) {
	var def constantDef
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	switch def.Type {
	case "nil":
		return nil, nil
	case "bool":
		var d boolConstantDef
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return d.Value, nil
	case "int":
		var d intConstantDef
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		// Integer literals are compiled as int.
		return int(d.Value), nil
	case "float":
		var d floatConstantDef
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return d.Value, nil
	case "string":
		var d stringConstantDef
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return d.Value, nil
	default:
		return nil, fmt.Errorf("unknown constant type: %s", def.Type)
	}
}
