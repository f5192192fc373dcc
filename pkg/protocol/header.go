package protocol

import "strings"

type field struct {
	key   string
	value string
}

// Header is an ordered set of header fields. Keys keep the casing they were
// first stored with and are matched case-insensitively.
//
// The zero value is an empty header ready to use.
type Header struct {
	fields []field
}

func (h *Header) index(key string) int {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].key, key) {
			return i
		}
	}
	return -1
}

// Set stores value under key, replacing any existing value.
func (h *Header) Set(key, value string) {
	if i := h.index(key); i >= 0 {
		h.fields[i].value = value
		return
	}
	h.fields = append(h.fields, field{key: key, value: value})
}

// Get returns the value stored under key, or "" if there is none.
func (h *Header) Get(key string) string {
	v, _ := h.Lookup(key)
	return v
}

// Lookup returns the value stored under key and whether it was present.
func (h *Header) Lookup(key string) (string, bool) {
	if i := h.index(key); i >= 0 {
		return h.fields[i].value, true
	}
	return "", false
}

// Has reports whether key is present.
func (h *Header) Has(key string) bool {
	return h.index(key) >= 0
}

// Del removes key.
func (h *Header) Del(key string) {
	if i := h.index(key); i >= 0 {
		h.fields = append(h.fields[:i], h.fields[i+1:]...)
	}
}

// Len returns the number of fields.
func (h *Header) Len() int {
	return len(h.fields)
}

// Reset removes all fields, keeping the allocated storage.
func (h *Header) Reset() {
	clear(h.fields)
	h.fields = h.fields[:0]
}

// Each calls fn for every field in insertion order.
func (h *Header) Each(fn func(key, value string)) {
	for _, f := range h.fields {
		fn(f.key, f.value)
	}
}

// Clone returns a deep copy of h.
func (h *Header) Clone() Header {
	var c Header
	if len(h.fields) > 0 {
		c.fields = append([]field(nil), h.fields...)
	}
	return c
}
