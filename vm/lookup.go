package vm

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Property lookup on Go values.
//
// Own properties are map entries, Fields entries, fields declared directly
// on a struct, the length and elements of slices and strings, and frame
// data. Fields promoted from embedded structs are inherited properties and
// methods are inherited methods. Inherited members are subject to the
// AccessControl of the render.

type memberKind int

const (
	missing memberKind = iota
	ownMember
	inheritedProperty
	inheritedMethod
)

// member resolves name on v and reports what kind of member it is.
func member(v any, name string) (any, memberKind) {
	switch v := v.(type) {
	case nil:
		return nil, missing
	case *Frame:
		if value, ok := v.Get(name); ok {
			return value, ownMember
		}
		return nil, missing
	case Fields:
		if value, ok := v.Field(name); ok {
			return value, ownMember
		}
		return methodOf(reflect.ValueOf(v), name)
	case *nullContext:
		return nil, missing
	}

	rv := reflect.ValueOf(v)
	base := indirect(rv)
	if !base.IsValid() {
		return nil, missing
	}
	switch base.Kind() {
	case reflect.Map:
		if value, ok := mapIndex(base, name); ok {
			return value, ownMember
		}
	case reflect.Slice, reflect.Array:
		if name == "length" {
			return base.Len(), ownMember
		}
		if i, err := strconv.Atoi(name); err == nil && i >= 0 && i < base.Len() {
			return base.Index(i).Interface(), ownMember
		}
	case reflect.String:
		s := base.String()
		if name == "length" {
			return utf8.RuneCountInString(s), ownMember
		}
		if i, err := strconv.Atoi(name); err == nil && i >= 0 {
			for j, r := range []rune(s) {
				if j == i {
					return string(r), ownMember
				}
			}
		}
	case reflect.Struct:
		info := structInfoOf(base.Type())
		if index, ok := info.own[name]; ok {
			return base.FieldByIndex(index).Interface(), ownMember
		}
		if index, ok := info.promoted[name]; ok {
			field, err := base.FieldByIndexErr(index)
			if err == nil {
				return field.Interface(), inheritedProperty
			}
		}
	}
	return methodOf(rv, name)
}

func mapIndex(m reflect.Value, name string) (any, bool) {
	keyType := m.Type().Key()
	var key reflect.Value
	switch keyType.Kind() {
	case reflect.String:
		key = reflect.ValueOf(name).Convert(keyType)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(name, 10, keyType.Bits())
		if err != nil {
			return nil, false
		}
		key = reflect.New(keyType).Elem()
		key.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(name, 10, keyType.Bits())
		if err != nil {
			return nil, false
		}
		key = reflect.New(keyType).Elem()
		key.SetUint(u)
	case reflect.Interface:
		key = reflect.ValueOf(name)
		if !key.Type().AssignableTo(keyType) {
			return nil, false
		}
	default:
		return nil, false
	}
	value := m.MapIndex(key)
	if !value.IsValid() {
		return nil, false
	}
	return value.Interface(), true
}

func methodOf(rv reflect.Value, name string) (any, memberKind) {
	if !rv.IsValid() || name == "" {
		return nil, missing
	}
	for _, candidate := range goNames(name) {
		if m := rv.MethodByName(candidate); m.IsValid() {
			return m.Interface(), inheritedMethod
		}
	}
	return nil, missing
}

// goNames lists the Go identifiers a template name may refer to.
func goNames(name string) []string {
	r, size := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) || r == utf8.RuneError {
		return []string{name}
	}
	return []string{name, string(unicode.ToUpper(r)) + name[size:]}
}

type structInfo struct {
	keys     []string
	own      map[string][]int
	promoted map[string][]int
}

var structCache sync.Map // reflect.Type -> *structInfo

func structInfoOf(t reflect.Type) *structInfo {
	if cached, ok := structCache.Load(t); ok {
		return cached.(*structInfo)
	}
	info := &structInfo{own: map[string][]int{}, promoted: map[string][]int{}}
	aliases := map[string][]int{}
	for _, field := range reflect.VisibleFields(t) {
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("hbs"); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		target := info.own
		if len(field.Index) > 1 {
			target = info.promoted
		} else {
			info.keys = append(info.keys, name)
		}
		if _, taken := target[name]; !taken {
			target[name] = field.Index
		}
		if name == field.Name {
			r, size := utf8.DecodeRuneInString(name)
			alias := string(unicode.ToLower(r)) + name[size:]
			if alias != name {
				if _, taken := aliases[alias]; !taken && len(field.Index) == 1 {
					aliases[alias] = field.Index
				}
			}
		}
	}
	for alias, index := range aliases {
		if _, taken := info.own[alias]; !taken {
			info.own[alias] = index
		}
	}
	cached, _ := structCache.LoadOrStore(t, info)
	return cached.(*structInfo)
}

// ownProperty returns the own property name of v.
func ownProperty(v any, name string) (any, bool) {
	value, kind := member(v, name)
	return value, kind == ownMember
}

// hasProperty reports whether v has a member called name, own or inherited,
// regardless of access control.
func hasProperty(v any, name string) bool {
	_, kind := member(v, name)
	return kind != missing
}

// property returns a member of v without access control.
func property(v any, name string) any {
	value, _ := member(v, name)
	return value
}

// AccessPolicy configures access to inherited members: promoted struct
// fields and methods.
type AccessPolicy struct {
	// AllowedProtoProperties allows (true) or denies (false) inherited
	// properties by name.
	AllowedProtoProperties map[string]bool

	// AllowedProtoMethods allows (true) or denies (false) methods by name.
	AllowedProtoMethods map[string]bool

	// AllowProtoPropertiesByDefault decides names not listed above. When
	// nil, unlisted names are denied and the denial is logged.
	AllowProtoPropertiesByDefault *bool

	// AllowProtoMethodsByDefault is the method counterpart.
	AllowProtoMethodsByDefault *bool
}

// Names that are denied unless an allow-list names them explicitly.
var (
	deniedMethods    = []string{"constructor", "__defineGetter__", "__defineSetter__", "__lookupGetter__"}
	deniedProperties = []string{"__proto__"}
)

type allowList struct {
	names        map[string]bool
	defaultValue *bool
}

func newAllowList(denied []string, allowed map[string]bool, defaultValue *bool) allowList {
	names := make(map[string]bool, len(denied)+len(allowed))
	for _, name := range denied {
		names[name] = false
	}
	for name, ok := range allowed {
		names[name] = ok
	}
	return allowList{names: names, defaultValue: defaultValue}
}

// AccessControl decides whether inherited members may be read. One is built
// per top level render.
type AccessControl struct {
	properties allowList
	methods    allowList
	log        *AccessLog
	logger     zerolog.Logger
}

// NewAccessControl builds the access control for a policy. Denials are
// reported through logger, once per name for the lifetime of log.
func NewAccessControl(policy AccessPolicy, log *AccessLog, logger zerolog.Logger) *AccessControl {
	if log == nil {
		log = DefaultAccessLog
	}
	return &AccessControl{
		properties: newAllowList(deniedProperties, policy.AllowedProtoProperties, policy.AllowProtoPropertiesByDefault),
		methods:    newAllowList(deniedMethods, policy.AllowedProtoMethods, policy.AllowProtoMethodsByDefault),
		log:        log,
		logger:     logger,
	}
}

// Allowed reports whether the inherited member name may be read.
func (a *AccessControl) Allowed(name string, method bool) bool {
	list := a.properties
	if method {
		list = a.methods
	}
	if allowed, ok := list.names[name]; ok {
		return allowed
	}
	if list.defaultValue != nil {
		return *list.defaultValue
	}
	if a.log.Mark(name) {
		a.logger.Error().
			Str("property", name).
			Msgf("Access has been denied to resolve the property %q because it is not an \"own property\" of its parent. "+
				"You can add a runtime option to disable the check or this warning.", name)
	}
	return false
}

// Lookup returns property name of parent. Nil parents and missing members
// yield nil; inherited members are returned only when allowed.
func (a *AccessControl) Lookup(parent any, name string) any {
	value, kind := member(parent, name)
	switch kind {
	case ownMember:
		return value
	case inheritedProperty, inheritedMethod:
		if value == nil {
			return nil
		}
		if a == nil || a.Allowed(name, kind == inheritedMethod) {
			return value
		}
	}
	return nil
}

// AccessLog records the property names whose denial was already reported.
// It is safe for concurrent use.
type AccessLog struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// DefaultAccessLog is the process wide log used when a render does not
// supply its own.
var DefaultAccessLog = NewAccessLog()

// NewAccessLog returns an empty log.
func NewAccessLog() *AccessLog {
	return &AccessLog{seen: map[string]struct{}{}}
}

// Seen reports whether name was already reported.
func (l *AccessLog) Seen(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[name]
	return ok
}

// Mark records name and reports whether it was new.
func (l *AccessLog) Mark(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[name]; ok {
		return false
	}
	l.seen[name] = struct{}{}
	return true
}

// Reset forgets every reported name.
func (l *AccessLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = map[string]struct{}{}
}

// ResetLoggedProperties clears DefaultAccessLog.
func ResetLoggedProperties() {
	DefaultAccessLog.Reset()
}
