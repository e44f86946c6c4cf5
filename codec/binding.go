package codec

// Binding decodes one family A payload.
//
// src is the payload following the 12-byte header; dst has exactly the
// expected decoded length. Decompress returns the number of bytes written.
// Implementations must be safe for concurrent use.
type Binding interface {
	Decompress(src, dst []byte) (int, error)
}

// BindingFunc adapts a function to Binding.
type BindingFunc func(src, dst []byte) (int, error)

// Decompress calls f(src, dst).
func (f BindingFunc) Decompress(src, dst []byte) (int, error) {
	return f(src, dst)
}
