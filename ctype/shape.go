package ctype

import (
	"regexp"
	"strconv"
	"strings"
)

const funcPtrMarker = "(*)"

var arraySuffixRe = regexp.MustCompile(`^(.*?)\s*((?:\[\d+\])+)$`)

// classifyFuncPtr parses "R (*)(A, B)".  Result and parameters may only be
// void, primitives, enums or pointers; anything passed by value that is not
// a scalar makes the whole signature unrecognized.
func (ts *TypeSet) classifyFuncPtr(sh Shape) Shape {
	s := sh.Raw
	i := strings.Index(s, funcPtrMarker)
	result := strings.TrimSpace(s[:i])
	rest := strings.TrimSpace(s[i+len(funcPtrMarker):])
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return sh
	}

	sig := &FuncSig{Result: ts.Classify(result)}
	if !callbackSafe(sig.Result) {
		return sh
	}

	for _, arg := range SplitArgs(rest[1 : len(rest)-1]) {
		if arg == "void" || arg == "" {
			continue
		}
		if arg == "..." {
			return sh
		}
		p := ts.Classify(arg)
		if !callbackSafe(p) || p.Category == Void {
			return sh
		}
		sig.Params = append(sig.Params, p)
	}

	sh.Category, sh.Func = FuncPtr, sig
	return sh
}

func callbackSafe(s Shape) bool {
	switch s.Category {
	case Void, Primitive, Enum:
		return true
	}
	return s.Category.IsPointer()
}

// SplitArgs splits a parameter list at top-level commas, leaving nested
// function pointer signatures intact.
func SplitArgs(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" || len(out) > 0 {
		out = append(out, tail)
	}
	return out
}

// classifyArray parses "T[N]" and "T[N][M]".  The element type is
// classified on its own and must not be unrecognized.
func (ts *TypeSet) classifyArray(sh Shape) Shape {
	m := arraySuffixRe.FindStringSubmatch(sh.Raw)
	if m == nil {
		return sh
	}
	dims := ArrayDims(m[2])
	if len(dims) == 0 || len(dims) > 2 {
		return sh
	}

	elem := ts.Classify(m[1])
	switch elem.Category {
	case Unrecognized, Void, Array1D, Array2D:
		return sh
	}

	sh.Elem, sh.Dims = &elem, dims
	if len(dims) == 1 {
		sh.Category = Array1D
	} else {
		sh.Category = Array2D
	}
	return sh
}

// ArrayDims extracts the sizes of "[4][16]" in order.
func ArrayDims(s string) []int {
	var dims []int
	for _, part := range strings.Split(s, "[") {
		part = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), "]"))
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil
		}
		dims = append(dims, n)
	}
	return dims
}

// Len is the total element count of an array shape.
func (s Shape) Len() int {
	n := 1
	for _, d := range s.Dims {
		n *= d
	}
	return n
}
