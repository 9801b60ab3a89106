package service

import gonanoid "github.com/matoous/go-nanoid/v2"

const (
	// IDAlphabet is base62: digits, lower and upper case letters.
	IDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// DefaultIDLength gives 62^7 ≈ 3.5e12 possible identifiers.
	DefaultIDLength = 7
)

// IDGenerator produces candidate short identifiers. Candidates are not guaranteed
// unique; uniqueness comes from the link store's conditional insert.
type IDGenerator interface {
	Generate() (string, error)
}

// NanoIDGenerator draws identifiers uniformly from IDAlphabet.
type NanoIDGenerator struct {
	length int
}

// NewNanoIDGenerator returns a generator for identifiers of the given length.
func NewNanoIDGenerator(length int) *NanoIDGenerator {
	if length <= 0 {
		length = DefaultIDLength
	}
	return &NanoIDGenerator{length: length}
}

func (g *NanoIDGenerator) Generate() (string, error) {
	return gonanoid.Generate(IDAlphabet, g.length)
}
