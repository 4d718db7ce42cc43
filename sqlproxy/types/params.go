package types

import "strings"

// Params is the parameter bundle for a statement. At most one of Positional
// and Named may be non-empty; a nil *Params binds nothing.
type Params struct {
	Positional []Value          `json:"positional,omitempty"`
	Named      map[string]Value `json:"named,omitempty"`
}

// PositionalParams is shorthand for a positional bundle.
func PositionalParams(values ...Value) *Params {
	return &Params{Positional: values}
}

// NamedParams is shorthand for a named bundle. Names include their sigil.
func NamedParams(values map[string]Value) *Params {
	return &Params{Named: values}
}

func (p *Params) IsEmpty() bool {
	return p == nil || (len(p.Positional) == 0 && len(p.Named) == 0)
}

// Args converts the bundle into database/sql arguments for query. Named
// parameters are resolved against the placeholders in query and passed by
// position, so every sigil and name form SQLite accepts binds the same way
// on every engine. Slots the bundle leaves out are bound to NULL.
func (p *Params) Args(query string) ([]any, error) {
	if p.IsEmpty() {
		return nil, nil
	}
	if len(p.Positional) > 0 && len(p.Named) > 0 {
		return nil, NewError(KindBind, "positional and named parameters are mutually exclusive")
	}
	if len(p.Positional) > 0 {
		args := make([]any, len(p.Positional))
		for i, v := range p.Positional {
			args[i] = v.Any()
		}
		return args, nil
	}

	slots := ScanPlaceholders(query)
	args := make([]any, slots.Count)
	for name, v := range p.Named {
		if len(name) < 2 || !strings.ContainsRune("?:@$", rune(name[0])) {
			return nil, NewError(KindBind, "named parameter %q must start with '?', ':', '@' or '$'", name)
		}
		index, ok := slots.Index[name]
		if !ok {
			return nil, NewError(KindBind, "named parameter %q does not appear in the statement", name)
		}
		args[index-1] = v.Any()
	}
	return args, nil
}
