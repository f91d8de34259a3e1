package kv

import (
	"iter"

	"github.com/emberhttp/ember/internal/strutil"
)

// Entry is a single header field: the name as it appeared on the wire and
// the ordered list of values observed for it.
type Entry struct {
	Name   string
	Values []string
}

// Storage is an associative structure for storing header fields. Lookup is
// case-insensitive, yet the original casing of names is preserved. It acts
// as a multimap but uses linear search instead of hashing, which proves to
// be more efficient on the relatively low amount of entries a request
// usually carries. Repeated occurrences of a name share a single entry, so
// iteration order equals insertion order of distinct names.
type Storage struct {
	entries  []Entry
	keysBuff []string
}

func New() *Storage {
	return new(Storage)
}

// NewPrealloc returns an instance of Storage with pre-allocated underlying storage.
func NewPrealloc(n int) *Storage {
	return &Storage{
		entries: make([]Entry, 0, n),
	}
}

// Add appends a value to the entry of the name, allocating the entry if the
// name wasn't seen before.
func (s *Storage) Add(name, value string) *Storage {
	if entry := s.lookup(name); entry != nil {
		entry.Values = append(entry.Values, value)
		return s
	}

	s.entries = append(s.entries, Entry{
		Name:   name,
		Values: []string{value},
	})

	return s
}

// Put replaces the entry of the name with the given values slice, taking
// ownership of it.
func (s *Storage) Put(name string, values []string) *Storage {
	if entry := s.lookup(name); entry != nil {
		entry.Values = values
		return s
	}

	s.entries = append(s.entries, Entry{
		Name:   name,
		Values: values,
	})

	return s
}

// Set replaces all values of the name with the single given one.
func (s *Storage) Set(name, value string) *Storage {
	return s.Put(name, []string{value})
}

// Value returns the first value corresponding to the name. Otherwise, empty
// string is returned.
func (s *Storage) Value(name string) string {
	return s.ValueOr(name, "")
}

// ValueOr returns either the first value corresponding to the name or the
// fallback, defined via the second parameter.
func (s *Storage) ValueOr(name, or string) string {
	value, found := s.Get(name)
	if !found {
		return or
	}

	return value
}

// Get returns the first value and a bool, indicating whether the value was
// found. If it wasn't, it'll be an empty string.
func (s *Storage) Get(name string) (value string, found bool) {
	if entry := s.lookup(name); entry != nil {
		return entry.Values[0], true
	}

	return "", false
}

// Values returns all values by the name in the order they were added. The
// returned slice references the underlying storage; appending to the entry
// must go through Add. Returns nil if the name doesn't exist.
func (s *Storage) Values(name string) []string {
	if entry := s.lookup(name); entry != nil {
		return entry.Values
	}

	return nil
}

// Has indicates whether there's an entry of the name.
func (s *Storage) Has(name string) bool {
	return s.lookup(name) != nil
}

// Keys returns all names in their original casing and insertion order.
//
// WARNING: calling it twice will override values, returned by the first
// call. Consider copying the returned slice for safe use.
func (s *Storage) Keys() []string {
	s.keysBuff = s.keysBuff[:0]

	for i := range s.entries {
		s.keysBuff = append(s.keysBuff, s.entries[i].Name)
	}

	return s.keysBuff
}

// Iter returns an iterator over (name, value) pairs. Names carrying multiple
// values are yielded once per value.
func (s *Storage) Iter() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for i := range s.entries {
			for _, value := range s.entries[i].Values {
				if !yield(s.entries[i].Name, value) {
					return
				}
			}
		}
	}
}

// Len returns the number of distinct names stored.
func (s *Storage) Len() int {
	return len(s.entries)
}

func (s *Storage) Empty() bool {
	return s.Len() == 0
}

// Clone creates a deep copy, which may be used later or stored somewhere
// safely. However, it comes at cost of multiple allocations.
func (s *Storage) Clone() *Storage {
	entries := make([]Entry, len(s.entries))

	for i := range s.entries {
		entries[i] = Entry{
			Name:   s.entries[i].Name,
			Values: clone(s.entries[i].Values),
		}
	}

	return &Storage{entries: entries}
}

// Expose exposes the underlying entries slice.
func (s *Storage) Expose() []Entry {
	return s.entries
}

// Clear all the entries. However, all the allocated space won't be freed.
func (s *Storage) Clear() *Storage {
	s.entries = s.entries[:0]
	return s
}

func (s *Storage) lookup(name string) *Entry {
	for i := range s.entries {
		if strutil.CmpFold(name, s.entries[i].Name) {
			return &s.entries[i]
		}
	}

	return nil
}

func clone[T any](source []T) []T {
	if len(source) == 0 {
		return nil
	}

	newSlice := make([]T, len(source))
	copy(newSlice, source)

	return newSlice
}
