package optimize

// PaginationArgs are the raw (user-facing) Relay pagination arguments for a
// single connection selection (spec.md §4.5).
type PaginationArgs struct {
	First  *int
	Last   *int
	Offset *int
	After  *int
	Before *int
	// MaxLimit caps First and Last when configured (a connection's
	// max_limit, or a global RELAY_CONNECTION_MAX_LIMIT-equivalent). Nil
	// means unconfigured (no cap).
	MaxLimit *int
}

// Slice is a [Start, Stop) window over a sequence of known Size.
type Slice struct {
	Start int
	Stop  int
}

// ValidatePaginationArgs enforces the constraints spec.md §4.5 requires
// before a slice can be computed: First/Last must be positive if present,
// After/Before must be non-negative, and After must not exceed Before when
// both are given. First/Last are capped by MaxLimit when configured.
func ValidatePaginationArgs(args PaginationArgs) (PaginationArgs, error) {
	if args.First != nil && *args.First <= 0 {
		return args, InvalidPaginationError("'first' must be a positive integer, got %d", *args.First)
	}
	if args.Last != nil && *args.Last <= 0 {
		return args, InvalidPaginationError("'last' must be a positive integer, got %d", *args.Last)
	}
	if args.After != nil && *args.After < 0 {
		return args, InvalidPaginationError("'after' must be a non-negative integer, got %d", *args.After)
	}
	if args.Before != nil && *args.Before < 0 {
		return args, InvalidPaginationError("'before' must be a non-negative integer, got %d", *args.Before)
	}
	if args.Offset != nil && *args.Offset < 0 {
		return args, InvalidPaginationError("'offset' must be a non-negative integer, got %d", *args.Offset)
	}
	if args.After != nil && args.Before != nil && *args.After > *args.Before {
		return args, InvalidPaginationError("'after' (%d) must not be greater than 'before' (%d)", *args.After, *args.Before)
	}

	out := args
	if args.MaxLimit != nil {
		if out.First != nil && *out.First > *args.MaxLimit {
			capped := *args.MaxLimit
			out.First = &capped
		}
		if out.Last != nil && *out.Last > *args.MaxLimit {
			capped := *args.MaxLimit
			out.Last = &capped
		}
		// A configured max-limit bounds the connection even when the client
		// asked for neither first nor last: without this, a connection with
		// a max_limit but no explicit pagination argument would fall through
		// IsUnbounded as if nothing were configured at all.
		if out.First == nil && out.Last == nil {
			capped := *args.MaxLimit
			out.First = &capped
		}
	}
	return out, nil
}

// CalculateSlice implements the Relay pagination algorithm (spec.md §4.5,
// cross-checked against the teacher's own from-scratch Relay cursor
// implementation in graphql/schemabuilder/pagination.go). after/before here
// are resolved 0-based indices (an upstream cursor codec, out of scope for
// this module, is responsible for turning opaque cursors into these).
func CalculateSlice(args PaginationArgs, size int) Slice {
	start, stop := 0, size

	if args.Offset != nil {
		start = minInt(*args.Offset, stop)
	}
	if args.After != nil {
		start = minInt(*args.After, stop)
	}
	if args.Before != nil {
		stop = minInt(*args.Before, stop)
	}
	if args.First != nil && *args.First < stop-start {
		stop = start + *args.First
	}
	if args.Last != nil && *args.Last < stop-start {
		start = stop - *args.Last
	}
	if start > stop {
		start = stop
	}
	return Slice{Start: start, Stop: stop}
}

// IsUnbounded reports whether no pagination argument at all was supplied and
// no max limit is configured — the case in which spec.md §4.5 says a nested
// connection must not be windowed.
func (a PaginationArgs) IsUnbounded() bool {
	return a.First == nil && a.Last == nil && a.Offset == nil && a.After == nil && a.Before == nil && a.MaxLimit == nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
