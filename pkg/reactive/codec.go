package reactive

// Encoder is the external collaborator the Encode operator consumes; only
// its contract is specified here, concrete codecs are out of scope (§1, §6).
type Encoder[V any] interface {
	Encode(value V) ([]byte, error)
}

// Decoder is the external collaborator the Decode operator consumes.
type Decoder[V any] interface {
	Decode(data []byte) (V, error)
}

// EncoderFunc adapts a plain function to an Encoder.
type EncoderFunc[V any] func(V) ([]byte, error)

func (f EncoderFunc[V]) Encode(v V) ([]byte, error) { return f(v) }

// DecoderFunc adapts a plain function to a Decoder.
type DecoderFunc[V any] func([]byte) (V, error)

func (f DecoderFunc[V]) Decode(data []byte) (V, error) { return f(data) }

// Encode transforms each value to bytes via enc, widening the error type to
// error and self-interposing so an encode failure can cancel the upstream
// (§4.3).
func Encode[V any](source Publisher[V], enc Encoder[V]) Publisher[[]byte] {
	return TryMap(source, func(v V) ([]byte, error) { return enc.Encode(v) })
}

// Decode transforms each chunk of bytes into a V via dec.
func Decode[V any](source Publisher[[]byte], dec Decoder[V]) Publisher[V] {
	return TryMap(source, func(b []byte) (V, error) { return dec.Decode(b) })
}
