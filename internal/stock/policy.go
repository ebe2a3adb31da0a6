package stock

// Policy decides what an indeterminate availability means for a caller.
// The sales terminal prefers not to block a sale on missing data, while
// stock movements must never skip the conservation check.
type Policy int

const (
	// Permissive treats indeterminate stock as unlimited.
	Permissive Policy = iota
	// Blocking treats indeterminate stock as zero available.
	Blocking
)

func (p Policy) String() string {
	switch p {
	case Permissive:
		return "permissive"
	case Blocking:
		return "blocking"
	default:
		return "unknown"
	}
}

// Limit applies the policy to a resolver result. limited reports whether the
// returned quantity is an enforceable ceiling; under Permissive an
// indeterminate result yields limited == false, meaning "do not block".
func (p Policy) Limit(qty Quantity, ok bool) (limit Quantity, limited bool) {
	if ok {
		return qty, true
	}
	if p == Blocking {
		return 0, true
	}
	return 0, false
}
