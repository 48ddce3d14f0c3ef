package backend

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Client. Paths are compared case-insensitively, the
// way the Dropbox backend compares them.
type Memory struct {
	mu      sync.Mutex
	files   map[string]string // id -> display path
	dirs    map[string]bool   // lower dir paths
	links   map[string]string // lower path -> url
	linkURL string
	nextID  int
}

// NewMemory creates an empty store. Shared links are minted below linkBase.
func NewMemory(linkBase string) *Memory {
	if linkBase == "" {
		linkBase = "https://links.local"
	}
	return &Memory{
		files:   make(map[string]string),
		dirs:    make(map[string]bool),
		links:   make(map[string]string),
		linkURL: strings.TrimRight(linkBase, "/"),
	}
}

// Put adds a file at p. An empty id is assigned automatically.
func (m *Memory) Put(id, p string) Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		m.nextID++
		id = fmt.Sprintf("id:mem%d", m.nextID)
	}
	m.files[id] = p
	m.dirs[strings.ToLower(path.Dir(p))] = true
	return Item{ID: id, Path: p}
}

// AddFolder registers an empty directory.
func (m *Memory) AddFolder(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[strings.ToLower(strings.TrimRight(dir, "/"))] = true
}

// Path returns the current path of id.
func (m *Memory) Path(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.files[id]
	return p, ok
}

func (m *Memory) ListFolder(ctx context.Context, dir string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := strings.ToLower(strings.TrimRight(dir, "/"))
	if !m.dirs[want] {
		return nil, fmt.Errorf("list %s: %w", dir, ErrNotFound)
	}
	var entries []Entry
	for id, p := range m.files {
		if strings.ToLower(path.Dir(p)) != want {
			continue
		}
		entries = append(entries, Entry{Kind: KindFile, ID: id, Path: p, Name: path.Base(p)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (m *Memory) GetMetadata(ctx context.Context, id string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.files[id]
	if !ok {
		return Item{}, fmt.Errorf("metadata %s: %w", id, ErrNotFound)
	}
	return Item{ID: id, Path: p}, nil
}

func (m *Memory) ListSharedLinks(ctx context.Context, p string) ([]SharedLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.links[strings.ToLower(p)]; ok {
		return []SharedLink{{URL: u, Path: p, Kind: KindFile}}, nil
	}
	return nil, nil
}

func (m *Memory) CreateSharedLink(ctx context.Context, p string) (SharedLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(p)
	if _, ok := m.links[key]; ok {
		return SharedLink{}, fmt.Errorf("create link %s: %w", p, ErrConflict)
	}
	if !m.hasPath(key) {
		return SharedLink{}, fmt.Errorf("create link %s: %w", p, ErrNotFound)
	}
	u := m.linkURL + p + "?dl=0"
	m.links[key] = u
	return SharedLink{URL: u, Path: p, Kind: KindFile}, nil
}

func (m *Memory) Move(ctx context.Context, from, to string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var id string
	for fid, p := range m.files {
		if strings.EqualFold(p, from) {
			id = fid
			break
		}
	}
	if id == "" {
		return Item{}, fmt.Errorf("move %s: %w", from, ErrNotFound)
	}
	if !strings.EqualFold(from, to) && m.hasPath(strings.ToLower(to)) {
		return Item{}, fmt.Errorf("move to %s: %w", to, ErrAlreadyExists)
	}
	m.files[id] = to
	m.dirs[strings.ToLower(path.Dir(to))] = true
	delete(m.links, strings.ToLower(from))
	return Item{ID: id, Path: to}, nil
}

func (m *Memory) hasPath(lower string) bool {
	for _, p := range m.files {
		if strings.ToLower(p) == lower {
			return true
		}
	}
	return false
}
