// Package backend defines the narrow contract the review engine needs from a
// remote content store, plus an in-process implementation used for local
// development and tests.
package backend

import (
	"context"
	"errors"
	"path"
)

var (
	// ErrNotFound is returned when a path or id does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a shared link was created concurrently.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyExists is returned when a move destination is taken.
	ErrAlreadyExists = errors.New("destination already exists")
	// ErrUnavailable covers transport failures and unexpected backend responses.
	ErrUnavailable = errors.New("backend unavailable")
)

// EntryKind tags the variant carried by an Entry.
type EntryKind string

const (
	KindFile    EntryKind = "file"
	KindFolder  EntryKind = "folder"
	KindDeleted EntryKind = "deleted"
)

// Entry is one row of a folder listing. Only entries of KindFile carry an ID.
type Entry struct {
	Kind EntryKind
	ID   string
	Path string
	Name string
}

// Item is a file addressed by a stable backend id and its current path.
type Item struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// DisplayName is the final segment of the item's path.
func (i Item) DisplayName() string {
	return path.Base(i.Path)
}

// SharedLink is a publicly dereferenceable URL for a path.
type SharedLink struct {
	URL  string
	Path string
	Kind EntryKind
}

// Client is the set of remote operations the engine relies on. Implementations
// do not retry; failures are returned wrapped around one of the sentinel errors
// above.
type Client interface {
	// ListFolder returns every entry directly under dir, following pagination.
	ListFolder(ctx context.Context, dir string) ([]Entry, error)
	// GetMetadata resolves an item by its id.
	GetMetadata(ctx context.Context, id string) (Item, error)
	// ListSharedLinks returns direct links for path in backend order.
	ListSharedLinks(ctx context.Context, path string) ([]SharedLink, error)
	// CreateSharedLink creates a non-expiring link for path.
	CreateSharedLink(ctx context.Context, path string) (SharedLink, error)
	// Move relocates an item and returns it at its new path.
	Move(ctx context.Context, from, to string) (Item, error)
}

// Files filters a listing down to file entries.
func Files(entries []Entry) []Item {
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case KindFile:
			items = append(items, Item{ID: e.ID, Path: e.Path})
		case KindFolder, KindDeleted:
		}
	}
	return items
}
