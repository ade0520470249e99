// Package internal provides hashing helpers for the memory-share pass.
// This package wraps golang.org/x/crypto/blake2b.
package internal

import "golang.org/x/crypto/blake2b"

// Key is a fixed-size canonical key derived from serialized pass state
// (condition sets, traversal states). Deriving keys by hashing keeps
// map keys bounded regardless of how large a condition set grows.
type Key [32]byte

// KeyOf computes the Blake2b-256 key of the given serialized form.
func KeyOf(data []byte) Key {
	return blake2b.Sum256(data)
}

// KeyOfString computes the Blake2b-256 key of a string.
func KeyOfString(s string) Key {
	return blake2b.Sum256([]byte(s))
}
