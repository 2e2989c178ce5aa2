package id

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the URL-safe symbol set identifiers are drawn from.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	defaultLength = 8
	minLength     = 4
	maxLength     = 64
)

// Source produces candidate identifiers. Uniqueness is not its concern; the
// store rejects duplicates and callers retry.
type Source interface {
	Generate() string
}

// Generator produces random, URL-safe identifiers of a fixed length.
type Generator struct {
	length int
}

// New returns a Generator with the provided length. If length is outside
// [4, 64], a sane default is used.
func New(length int) *Generator {
	if length < minLength || length > maxLength {
		length = defaultLength
	}
	return &Generator{length: length}
}

// Length reports the identifier length.
func (g *Generator) Length() int {
	return g.length
}

// Generate returns a new identifier.
func (g *Generator) Generate() string {
	return gonanoid.MustGenerate(Alphabet, g.length)
}

// Valid reports whether s could have been produced by a Generator.
func Valid(s string) bool {
	if len(s) < minLength || len(s) > maxLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z') {
			return false
		}
	}
	return true
}
