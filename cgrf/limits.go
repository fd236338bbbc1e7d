package cgrf

// Limits bounds the resources a single [Encode] or [Decode] call may
// consume. All limits are enforced during both encoding and decoding.
type Limits struct {
	// MaxBufferBytes bounds the total size of an encoded buffer.
	MaxBufferBytes int
	// MaxNodes bounds node_count.
	MaxNodes int
	// MaxStringBytes bounds any single string node's payload.
	MaxStringBytes int
	// MaxArity bounds the element count of any list, record, or tuple
	// node.
	MaxArity int
	// MaxDepth bounds recursion depth during traversal.
	MaxDepth int
}

// DefaultLimits returns the limits specified in the CGRF buffer format
// design: a 16 MiB buffer, 1,000,000 nodes, an 8 MiB string, a
// 1,000,000 list/record/tuple arity, and a recursion depth of 10,000.
func DefaultLimits() Limits {
	return Limits{
		MaxBufferBytes: 16 * 1024 * 1024,
		MaxNodes:       1_000_000,
		MaxStringBytes: 8 * 1024 * 1024,
		MaxArity:       1_000_000,
		MaxDepth:       10_000,
	}
}
