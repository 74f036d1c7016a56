package vm

// Frame holds the "@" data visible to a program: @root, @index, @key,
// @first, @last, @partial-block and any data the caller supplies.
//
// A frame inherits every value of its parent and may shadow them. The
// parent is also reachable directly with "@../name".
type Frame struct {
	parent *Frame
	keys   []string
	values map[string]any
}

// NewFrame returns an empty frame that inherits from parent.
func NewFrame(parent *Frame) *Frame {
	return &Frame{parent: parent}
}

// FrameOf returns a root frame holding a copy of values.
func FrameOf(values map[string]any) *Frame {
	f := &Frame{}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sortKeys(keys)
	for _, key := range keys {
		f.Set(key, values[key])
	}
	return f
}

// Parent returns the frame this frame was created from.
func (f *Frame) Parent() *Frame {
	if f == nil {
		return nil
	}
	return f.parent
}

// Set assigns a value on this frame.
func (f *Frame) Set(key string, value any) {
	if f.values == nil {
		f.values = map[string]any{}
	}
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Get returns the value of key on this frame or the nearest ancestor that
// has it. A key set to nil shadows ancestors.
func (f *Frame) Get(key string) (any, bool) {
	for frame := f; frame != nil; frame = frame.parent {
		if v, ok := frame.values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Value is Get without the presence flag.
func (f *Frame) Value(key string) any {
	v, _ := f.Get(key)
	return v
}

// Keys returns every visible key, nearest frame first.
func (f *Frame) Keys() []string {
	seen := map[string]bool{}
	var keys []string
	for frame := f; frame != nil; frame = frame.parent {
		for _, key := range frame.keys {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// Field implements Fields.
func (f *Frame) Field(name string) (any, bool) {
	return f.Get(name)
}

// depth walks n parents up, stopping at nil.
func (f *Frame) depth(n int) *Frame {
	frame := f
	for ; frame != nil && n > 0; n-- {
		frame = frame.parent
	}
	return frame
}
