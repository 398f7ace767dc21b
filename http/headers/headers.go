package headers

import (
	"iter"

	"github.com/indigo-web/utils/strcomp"
)

// Header is a single header name with all its values in the order of arrival.
type Header struct {
	Name   string
	Values []string
}

// Headers is an ordered associative structure mapping header names onto ordered value
// lists. Lookups are case-insensitive, yet the casing of the first occurrence is the one
// being preserved. It uses linear search instead of a map, which proves to be more
// efficient on relatively low amount of entries, which is always the case here.
type Headers struct {
	entries []Header
}

func New() *Headers {
	return new(Headers)
}

// NewPrealloc returns an instance of Headers with pre-allocated underlying storage.
func NewPrealloc(n int) *Headers {
	return &Headers{
		entries: make([]Header, 0, n),
	}
}

// Add appends values to the header. If the header doesn't exist yet, it's created with
// the passed casing, otherwise the original casing is kept.
func (h *Headers) Add(name string, values ...string) *Headers {
	if i := h.index(name); i != -1 {
		h.entries[i].Values = append(h.entries[i].Values, values...)
		return h
	}

	h.entries = append(h.entries, Header{
		Name:   name,
		Values: append(make([]string, 0, len(values)), values...),
	})

	return h
}

// Get returns all values of the header and a bool, indicating whether it's presented.
func (h *Headers) Get(name string) (values []string, found bool) {
	if i := h.index(name); i != -1 {
		return h.entries[i].Values, true
	}

	return nil, false
}

// Values returns all values of the header. Returns nil if the header doesn't exist.
func (h *Headers) Values(name string) []string {
	values, _ := h.Get(name)
	return values
}

// Value returns the first value of the header, or an empty string.
func (h *Headers) Value(name string) string {
	return h.ValueOr(name, "")
}

// ValueOr returns either the first value of the header or the passed default.
func (h *Headers) ValueOr(name, or string) string {
	values := h.Values(name)
	if len(values) == 0 {
		return or
	}

	return values[0]
}

// Has indicates, whether there's an entry of the header.
func (h *Headers) Has(name string) bool {
	return h.index(name) != -1
}

// Names returns an iterator over header names in the order of their first arrival.
func (h *Headers) Names() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, entry := range h.entries {
			if !yield(entry.Name) {
				return
			}
		}
	}
}

// Pairs returns an iterator over the headers.
func (h *Headers) Pairs() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		for _, entry := range h.entries {
			if !yield(entry.Name, entry.Values) {
				return
			}
		}
	}
}

// Len returns a number of unique header names.
func (h *Headers) Len() int {
	return len(h.entries)
}

func (h *Headers) Empty() bool {
	return h.Len() == 0
}

// Expose exposes the underlying entries slice.
func (h *Headers) Expose() []Header {
	return h.entries
}

// Clone creates a deep copy, which may be used later or stored somewhere safely.
func (h *Headers) Clone() *Headers {
	c := NewPrealloc(len(h.entries))
	for _, entry := range h.entries {
		c.Add(entry.Name, entry.Values...)
	}

	return c
}

// Clear all the entries. However, all the allocated space won't be freed.
func (h *Headers) Clear() *Headers {
	h.entries = h.entries[:0]
	return h
}

func (h *Headers) index(name string) int {
	for i, entry := range h.entries {
		if strcomp.EqualFold(entry.Name, name) {
			return i
		}
	}

	return -1
}
