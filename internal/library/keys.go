package library

import "github.com/google/uuid"

// keyAlphabet omits characters that are easy to misread (0, O, 1, l).
const keyAlphabet = "23456789ABCDEFGHIJKMNPQRSTUVWXYZ"

// newItemKey generates an 8-character item key. Uniqueness is enforced
// by the items.key constraint; collisions are retried by the caller.
func newItemKey() string {
	raw := uuid.New()
	key := make([]byte, 8)
	for i := range key {
		key[i] = keyAlphabet[int(raw[i])%len(keyAlphabet)]
	}
	return string(key)
}
