package reactor

import (
	"iter"
	"time"

	"github.com/indigo-web/reactor/internal/server/conn"
	"github.com/indigo-web/reactor/internal/server/tcp"
)

// Entry binds a client socket to its connection state.
type Entry struct {
	Client *tcp.Client
	Conn   *conn.Connection
	// LastActive is the moment of the last I/O progress.
	LastActive time.Time
	// Writing is set while the descriptor is watched for write readiness. Nothing is read
	// in the meantime.
	Writing bool
	// Closing is set if the connection must be closed as soon as pending output is flushed.
	Closing bool
}

// Registry owns every open client connection, keyed by the descriptor.
type Registry struct {
	entries map[int]*Entry
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int]*Entry),
	}
}

func (r *Registry) Add(fd int, entry *Entry) {
	r.entries[fd] = entry
}

func (r *Registry) Get(fd int) (*Entry, bool) {
	entry, found := r.entries[fd]
	return entry, found
}

// Remove deletes the entry and returns it. The bool is false if there was no such entry,
// so a descriptor is never torn down twice.
func (r *Registry) Remove(fd int) (*Entry, bool) {
	entry, found := r.entries[fd]
	if found {
		delete(r.entries, fd)
	}

	return entry, found
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// All iterates over the entries. Removing entries during the iteration is allowed.
func (r *Registry) All() iter.Seq2[int, *Entry] {
	return func(yield func(int, *Entry) bool) {
		for fd, entry := range r.entries {
			if !yield(fd, entry) {
				return
			}
		}
	}
}
