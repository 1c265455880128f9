package ctype

// ResultKey is the member name under which a function's return type is
// overridden: "sg_query_desc.RESULT".
const ResultKey = "RESULT"

// Overrides holds the declarative name and type corrections of a run.  A
// nil *Overrides behaves like empty tables; a miss is never an error.
type Overrides struct {
	ignore        map[string]bool
	names         map[string]string
	types         map[string]string
	handleReturns map[string]bool
}

// NewOverrides builds the tables.  types is keyed by "<owner>.<member>".
// handleReturns lists functions that keep their narrower id-returning
// convention and are exempt from struct-return detection.
func NewOverrides(ignore []string, names, types map[string]string, handleReturns []string) *Overrides {
	o := &Overrides{
		ignore:        make(map[string]bool, len(ignore)),
		names:         make(map[string]string, len(names)),
		types:         make(map[string]string, len(types)),
		handleReturns: make(map[string]bool, len(handleReturns)),
	}
	for _, n := range ignore {
		o.ignore[n] = true
	}
	for k, v := range names {
		o.names[k] = v
	}
	for k, v := range types {
		o.types[k] = v
	}
	for _, n := range handleReturns {
		o.handleReturns[n] = true
	}
	return o
}

// Ignored reports whether name must never be emitted.
func (o *Overrides) Ignored(name string) bool {
	return o != nil && o.ignore[name]
}

// Name returns the substitute for name, or name itself.
func (o *Overrides) Name(name string) string {
	if o != nil {
		if n, ok := o.names[name]; ok {
			return n
		}
	}
	return name
}

// Type returns the substitute type of owner.member, or orig.
func (o *Overrides) Type(owner, member, orig string) string {
	if o != nil {
		if t, ok := o.types[owner+"."+member]; ok {
			return t
		}
	}
	return orig
}

// Result returns the override-adjusted return type of fn.
func (o *Overrides) Result(fn, orig string) string {
	return o.Type(fn, ResultKey, orig)
}

// IsHandleReturn reports whether fn is on the handle-return allow-list.
func (o *Overrides) IsHandleReturn(fn string) bool {
	return o != nil && o.handleReturns[fn]
}
