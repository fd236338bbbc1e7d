package iterate

// Seq2 is a range-over-func iterator of key-value pairs, matching the
// shape of the standard library's iter.Seq2.
type Seq2[K, V any] func(yield func(K, V) bool)
