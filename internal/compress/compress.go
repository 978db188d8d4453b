package compress

// Compress encodes and decodes entity content at rest.
type Compress interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// ByName returns the codec for a Compression column value. Unknown or
// empty names mean plain, uncompressed content.
func ByName(name string) Compress {
	switch name {
	case "gzip":
		return NewGZip()
	case "brotli":
		return NewBrotli()
	case "lz4":
		return NewLZ4()
	default:
		return NewNop()
	}
}
