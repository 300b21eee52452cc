// Package compress provides the codecs used to encode snapshot blobs before
// they land in the version log.
package compress

import "fmt"

type Compress interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// New returns the codec registered under the given name.
func New(name string) (Compress, error) {
	switch name {
	case "", "nop":
		return NewNop(), nil
	case "gzip":
		return NewGZip(), nil
	case "lz4":
		return NewLZ4(), nil
	case "brotli":
		return NewBrotli(), nil
	default:
		return nil, fmt.Errorf("unknown compression codec: %s", name)
	}
}
