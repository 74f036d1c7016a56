package builtins

// HelperSpec documents a built-in helper or decorator.
type HelperSpec struct {
	// Name is the helper name (e.g., "each", "if").
	Name string `json:"name"`

	// Doc is a short description of what the helper does.
	Doc string `json:"doc"`

	// Args lists parameter names. A trailing "=" marks a hash argument.
	Args []string `json:"args,omitempty"`

	// Block is true for helpers used with {{#name}}.
	Block bool `json:"block,omitempty"`

	// Example shows typical usage.
	Example string `json:"example,omitempty"`
}

// Docs returns documentation for all built-in helpers and decorators.
func Docs() []HelperSpec {
	return helperDocs
}

var helperDocs = []HelperSpec{
	{
		Name:    "blockHelperMissing",
		Doc:     "Render a block whose name resolved to a value",
		Args:    []string{"value"},
		Block:   true,
		Example: "{{#items}}{{name}}{{/items}}",
	},
	{
		Name:    "each",
		Doc:     "Render the block for each element, binding @index, @key, @first and @last",
		Args:    []string{"items"},
		Block:   true,
		Example: "{{#each items as |item i|}}{{i}}: {{item}}{{/each}}",
	},
	{
		Name:    "helperMissing",
		Doc:     "Called for unknown helpers; fails when arguments were given",
		Args:    []string{"args..."},
		Example: "{{unknown arg}}",
	},
	{
		Name:    "if",
		Doc:     "Render the block when the value is truthy",
		Args:    []string{"value", "includeZero="},
		Block:   true,
		Example: "{{#if user}}Hi {{user.name}}{{else}}Sign in{{/if}}",
	},
	{
		Name:    "inline",
		Doc:     "Register the block as a partial for the enclosing program",
		Args:    []string{"name"},
		Block:   true,
		Example: "{{#*inline \"row\"}}<tr>{{.}}</tr>{{/inline}}",
	},
	{
		Name:    "log",
		Doc:     "Write the arguments to the logger",
		Args:    []string{"args...", "level="},
		Example: "{{log \"user\" user.id level=\"warn\"}}",
	},
	{
		Name:    "lookup",
		Doc:     "Read a property whose name is computed at render time",
		Args:    []string{"object", "field"},
		Example: "{{lookup labels @key}}",
	},
	{
		Name:    "unless",
		Doc:     "Render the block when the value is falsy",
		Args:    []string{"value", "includeZero="},
		Block:   true,
		Example: "{{#unless done}}pending{{/unless}}",
	},
	{
		Name:    "with",
		Doc:     "Render the block with the value as context",
		Args:    []string{"value"},
		Block:   true,
		Example: "{{#with author as |a|}}{{a.name}}{{/with}}",
	},
}
