package sema

import "vvm/internal/hir"

// RefKind distinguishes what a Resolved reference names (spec §4.1 "Scopes
// and symbol table").
type RefKind uint8

const (
	RefVar RefKind = iota
	RefFunc
	RefGeneric
	RefMacro
	RefTemplate
	RefData
	RefBuiltinFunc
	RefBuiltinType
	RefSemanticBuiltin
)

// Resolved is one entry a scope's symbol table can hold for a name.
type Resolved struct {
	Kind    RefKind
	Decl    *hir.Decl
	Func    *hir.FuncDef
	Generic *hir.GenericFuncDef
	Macro   *hir.MacroDef
	Template *hir.TemplateDef
	Data    *hir.DataDef
}

// signature returns a structural signature string for overload-distinctness
// checks (spec §4.1 storage rule: "signature equality checked structurally").
func (r Resolved) signature() string {
	switch r.Kind {
	case RefFunc:
		return funcSignature(r.Func)
	case RefVar:
		return "var"
	default:
		return "other"
	}
}

func funcSignature(f *hir.FuncDef) string {
	s := ""
	for _, a := range f.Args {
		s += a.Type.String() + ","
	}
	return s
}

// Scope is one lexical scope: a map from name to a non-empty ordered list of
// references, plus a parent link (spec §4.1 "Scopes form a tree").
type Scope struct {
	id       int
	parent   *Scope
	symbols  map[string][]Resolved
	// preferred is consulted first for identifier lookup inside from/sort/join
	// clauses (spec §4.1 "preferred scope").
	preferred *Scope
	impliedMembers map[string]bool
}

func newScope(id int, parent *Scope) *Scope {
	return &Scope{id: id, parent: parent, symbols: make(map[string][]Resolved)}
}

// storeSymbol implements spec §4.1's store_symbol rule.
func (s *Scope) storeSymbol(name string, ref Resolved, interactive bool) error {
	existing, ok := s.symbols[name]
	if !ok {
		s.symbols[name] = []Resolved{ref}
		return nil
	}
	sig := ref.signature()
	for _, e := range existing {
		if e.signature() == sig {
			if interactive && e.Kind != RefBuiltinFunc && e.Kind != RefBuiltinType {
				// overwrite in place
				for i := range s.symbols[name] {
					if s.symbols[name][i].signature() == sig {
						s.symbols[name][i] = ref
						return nil
					}
				}
			}
			if ref.Kind == RefFunc && e.Kind == RefGeneric {
				// specialisation of an existing generic: recorded by the
				// caller via GenericFuncDef.Instantiated, not appended here.
				return nil
			}
			return &redefinitionError{name: name}
		}
	}
	s.symbols[name] = append(s.symbols[name], ref)
	return nil
}

type redefinitionError struct{ name string }

func (e *redefinitionError) Error() string { return "redefinition of " + e.name }

// lookup searches this scope's preferred scope (if set), then this scope,
// then ancestors.
func (s *Scope) lookup(name string) ([]Resolved, *Scope, bool) {
	if s.preferred != nil {
		if refs, ok := s.preferred.symbols[name]; ok {
			return refs, s.preferred, true
		}
	}
	for sc := s; sc != nil; sc = sc.parent {
		if refs, ok := sc.symbols[name]; ok {
			return refs, sc, false
		}
	}
	return nil, nil, false
}

// scopeTree owns every Scope created during one analysis, for debugging and
// for is_global computation (a Decl at the root scope is global).
type scopeTree struct {
	scopes []*Scope
	root   *Scope
}

func newScopeTree() *scopeTree {
	t := &scopeTree{}
	root := newScope(0, nil)
	t.scopes = append(t.scopes, root)
	t.root = root
	return t
}

func (t *scopeTree) push(parent *Scope) *Scope {
	s := newScope(len(t.scopes), parent)
	t.scopes = append(t.scopes, s)
	return s
}
