package ir

import (
	"strings"

	"headerbind/clangast"
)

// Retained is a top-level node that passed the prefix filter together with
// its ownership stamp.
type Retained struct {
	Node   *clangast.Node
	Origin Origin
}

// IsAPIDecl reports whether a node's identifier starts with prefix.  An
// anonymous enum has no identifier of its own and is matched on its first
// item instead, case-insensitively, since constant groups are usually
// spelled in upper case (SG_MAX_... under the sg_ prefix).
func IsAPIDecl(n *clangast.Node, prefix string) bool {
	if n.Name != "" {
		return strings.HasPrefix(n.Name, prefix)
	}
	if n.Kind == clangast.KindEnum {
		first := clangast.FirstNonComment(n.Inner)
		if first == nil {
			return false
		}
		return strings.HasPrefix(strings.ToLower(first.Name), strings.ToLower(prefix))
	}
	return false
}

// Classify decides whether a node belongs to the module (local), to one of
// its dependencies, or to neither.  Dependency prefixes are tried in
// declaration order and the first match wins.  A dependency prefix only
// overrides a matching module prefix when it is longer, i.e. more specific.
func Classify(n *clangast.Node, prefix string, depPrefixes []string) (Origin, bool) {
	own := IsAPIDecl(n, prefix)
	for _, dep := range depPrefixes {
		if own && len(dep) <= len(prefix) {
			continue
		}
		if IsAPIDecl(n, dep) {
			return Origin{IsDep: true, DepPrefix: dep}, true
		}
	}
	if own {
		return Origin{}, true
	}
	return Origin{}, false
}

// Filter keeps the nodes owned by the module or its dependencies, in order.
func Filter(nodes []*clangast.Node, prefix string, depPrefixes []string) []Retained {
	var out []Retained
	for _, n := range nodes {
		if origin, ok := Classify(n, prefix, depPrefixes); ok {
			out = append(out, Retained{Node: n, Origin: origin})
		}
	}
	return out
}
