package sema

import (
	"fmt"

	"vvm/internal/ast"
	"vvm/internal/langtypes"
)

// placeholder is a generic type-parameter id; the analyzer's placeholder map
// stores the concrete type chosen for it by side effect during overload
// matching (spec §4.1 "Type equality").
type placeholderMap struct {
	bound map[string]langtypes.TypeCode
}

func newPlaceholderMap() *placeholderMap {
	return &placeholderMap{bound: make(map[string]langtypes.TypeCode)}
}

func (m *placeholderMap) reset() { m.bound = make(map[string]langtypes.TypeCode) }

// unify checks a formal parameter type (possibly naming a placeholder)
// against a concrete argument type, binding the placeholder on first sight.
func (m *placeholderMap) unify(placeholders map[string]bool, formal string, concrete langtypes.TypeCode, resolve func(string) (langtypes.TypeCode, bool)) bool {
	if placeholders[formal] {
		if bound, ok := m.bound[formal]; ok {
			return bound == concrete
		}
		m.bound[formal] = concrete
		return true
	}
	want, ok := resolve(formal)
	return ok && want == concrete
}

// builtinKindByName maps a builtin type name to its Kind.
func builtinKindByName(name string) (langtypes.Kind, bool) {
	switch name {
	case "Bool":
		return langtypes.Bool, true
	case "Char":
		return langtypes.Char, true
	case "String":
		return langtypes.String, true
	case "Int64":
		return langtypes.Int64, true
	case "Float64":
		return langtypes.Float64, true
	case "Date":
		return langtypes.Date, true
	case "Time":
		return langtypes.Time, true
	case "Timestamp":
		return langtypes.Timestamp, true
	case "Timedelta":
		return langtypes.Timedelta, true
	}
	return 0, false
}

// resolveTypeExpr resolves an ast.TypeExpr against the current scope:
// builtin names, `[T]` vector-of, `Name{args}` template/data instantiation,
// user-defined record names, and (inside a generic body) placeholder names.
func (a *Analyzer) resolveTypeExpr(te *ast.TypeExpr, scope *Scope, placeholders map[string]bool) (langtypes.TypeCode, error) {
	if te == nil {
		return 0, fmt.Errorf("nil type expression")
	}
	if te.ArrayOf != nil {
		inner, err := a.resolveTypeExpr(te.ArrayOf, scope, placeholders)
		if err != nil {
			return 0, err
		}
		v, err := a.types.VectorOf(inner)
		if err != nil {
			return 0, err
		}
		return v, nil
	}
	if placeholders[te.Name] {
		if t, ok := a.placeholders.bound[te.Name]; ok {
			return t, nil
		}
		return 0, fmt.Errorf("unbound placeholder %q", te.Name)
	}
	if k, ok := builtinKindByName(te.Name); ok {
		return langtypes.Builtin(k, langtypes.Scalar), nil
	}
	if len(te.TemplateArgs) > 0 {
		return a.instantiateDataTemplate(te, scope)
	}
	refs, _, _ := scope.lookup(te.Name)
	for _, r := range refs {
		if r.Kind == RefData && r.Data != nil {
			return r.Data.Type, nil
		}
	}
	return 0, fmt.Errorf("unknown type %q", te.Name)
}

// typesEqual is structural equality with placeholder unification applied
// (placeholders are resolved to concrete bindings before comparison; this
// helper is for already-resolved TypeCodes, where equality is a plain ==).
func typesEqual(a, b langtypes.TypeCode) bool { return a == b }
