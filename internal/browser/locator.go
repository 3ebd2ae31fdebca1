package browser

import "strings"

// Path is one way to reach an element: a chain of selectors where every hop
// after the first is resolved inside the previous match (inside its shadow
// root when it has one).
type Path []string

func (p Path) String() string { return strings.Join(p, " >> ") }

// LocatorSpec is an ordered list of alternative paths. The first path that
// resolves wins.
type LocatorSpec []Path

// CSS builds a single-alternative, single-hop spec per selector, in order.
func CSS(selectors ...string) LocatorSpec {
	spec := make(LocatorSpec, 0, len(selectors))
	for _, s := range selectors {
		spec = append(spec, Path{s})
	}
	return spec
}

// Pierce builds one alternative that crosses encapsulation boundaries.
func Pierce(hops ...string) Path { return Path(hops) }

func (s LocatorSpec) String() string {
	parts := make([]string, len(s))
	for i, p := range s {
		parts[i] = p.String()
	}
	return "[" + strings.Join(parts, " | ") + "]"
}
