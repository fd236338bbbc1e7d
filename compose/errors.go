package compose

import "strings"

// WireError reports a problem in the wiring graph or in remapping an
// instruction's index: an unresolved wire, a cycle among wired
// modules, or an instruction whose operand has no merged index. The
// composer never emits output when one of these occurs (§4.6 step 5:
// "never silently passed through with original indices").
type WireError struct {
	Reason string
	// Path is the module names forming a cycle, in order, with the
	// first name repeated at the end to show where it closes.
	Path []string
}

func (e *WireError) Error() string {
	if len(e.Path) > 0 {
		return "compose: wiring cycle: " + strings.Join(e.Path, " -> ")
	}
	return "compose: " + e.Reason
}
