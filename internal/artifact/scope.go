package artifact

// Scope tags a dependency edge with its visibility.
type Scope string

const (
	ScopeCompile  Scope = "compile"
	ScopeRuntime  Scope = "runtime"
	ScopeProvided Scope = "provided"
	ScopeSystem   Scope = "system"
	ScopeTest     Scope = "test"
)

// width orders scopes from widest (compile) to narrowest (test).
var width = map[Scope]int{
	ScopeCompile:  0,
	ScopeRuntime:  1,
	ScopeProvided: 1,
	ScopeSystem:   1,
	ScopeTest:     2,
}

// NarrowScope returns the scope a dependency declared with declared takes
// on when reached through a parent in scope parent. The result is never
// wider than parent. Empty scopes inherit, unknown scopes pass through.
func NarrowScope(parent, declared Scope) Scope {
	if declared == "" {
		return parent
	}
	if parent == "" {
		return declared
	}
	pw, pok := width[parent]
	dw, dok := width[declared]
	if !pok || !dok {
		return declared
	}
	if pw > dw {
		return parent
	}
	return declared
}
