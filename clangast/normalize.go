package clangast

import (
	"fmt"
	"strings"

	"github.com/divan/num2words"
)

// Normalize returns a new top-level declaration list in which every
// anonymous aggregate that is immediately followed by a typedef naming it is
// collapsed into a single named aggregate.  All other nodes pass through in
// their original order; the input slice and its nodes are not modified.
//
// Aggregates without member nodes are kept and marked Empty.  Anonymous ones
// receive a placeholder name so later type references stay resolvable.
func Normalize(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	anonCount := 0

	for i := 0; i < len(nodes); i++ {
		n := nodes[i]
		if n.Kind != KindRecord {
			out = append(out, n)
			continue
		}

		c := *n
		if c.Name == "" && i+1 < len(nodes) {
			next := nodes[i+1]
			if next.Kind == KindTypedef && next.Name != "" {
				c.Name = next.Name
				i++
			}
		}
		if !hasMembers(&c) {
			c.Empty = true
			if c.Name == "" {
				anonCount++
				c.Name = placeholderName(c.TagUsed, anonCount)
			}
		}
		out = append(out, &c)
	}

	return out
}

// hasMembers reports whether an aggregate carries anything besides comments.
func hasMembers(n *Node) bool {
	return FirstNonComment(n.Inner) != nil
}

// placeholderName synthesizes a stable name for the n-th anonymous empty
// aggregate of a translation unit, e.g. "anonymous_struct_three".
func placeholderName(tag string, n int) string {
	if tag == "" {
		tag = "struct"
	}
	words := strings.ReplaceAll(num2words.Convert(n), " ", "_")
	words = strings.ReplaceAll(words, "-", "_")
	return fmt.Sprintf("anonymous_%s_%s", tag, words)
}
