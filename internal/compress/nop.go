package compress

// Nop is the identity codec and the default: snapshot blobs are stored
// verbatim, so version rows stay readable JSON in the database.
type Nop struct {
}

func NewNop() Nop {
	return Nop{}
}

func (n Nop) Encode(data []byte) ([]byte, error) {
	return data, nil
}

func (n Nop) Decode(data []byte) ([]byte, error) {
	return data, nil
}
