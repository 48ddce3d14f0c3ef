package review

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// State is a workflow state. Each state is backed by one backend folder.
type State string

const (
	Pending  State = "pending"
	Approved State = "approved"
	Deleted  State = "deleted"
	Rework   State = "rework"
)

// States lists every state in a stable order.
var States = []State{Pending, Approved, Deleted, Rework}

// Action is a reviewer decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionDelete  Action = "delete"
	ActionRework  Action = "rework"
)

// transitions is the full transition table. Pending is the only source state.
var transitions = map[Action]State{
	ActionApprove: Approved,
	ActionDelete:  Deleted,
	ActionRework:  Rework,
}

// ParseAction validates a raw action string.
func ParseAction(raw string) (Action, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: action", ErrMissingParameter)
	}
	a := Action(raw)
	if _, ok := transitions[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, raw)
	}
	return a, nil
}

// Target returns the state an action moves a pending item into.
func (a Action) Target() State {
	return transitions[a]
}

// Folders maps each state to its backend directory. The mapping is injective
// so that a directory identifies its state.
type Folders struct {
	dirs map[State]string
}

// NewFolders validates and builds the state-to-directory mapping. Directories
// must be absolute and pairwise distinct; comparison ignores case and a
// trailing slash because the backend does.
func NewFolders(pending, approved, deleted, rework string) (Folders, error) {
	raw := map[State]string{
		Pending:  pending,
		Approved: approved,
		Deleted:  deleted,
		Rework:   rework,
	}

	var errs []error
	dirs := make(map[State]string, len(raw))
	seen := make(map[string]State, len(raw))
	for _, s := range States {
		dir := cleanDir(raw[s])
		switch {
		case dir == "":
			errs = append(errs, fmt.Errorf("folder for %s is not set", s))
			continue
		case !strings.HasPrefix(dir, "/"):
			errs = append(errs, fmt.Errorf("folder for %s must be absolute: %q", s, raw[s]))
			continue
		}
		key := strings.ToLower(dir)
		if other, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("folders for %s and %s are the same: %q", other, s, dir))
			continue
		}
		seen[key] = s
		dirs[s] = dir
	}
	if err := errors.Join(errs...); err != nil {
		return Folders{}, err
	}
	return Folders{dirs: dirs}, nil
}

// Dir returns the directory backing s.
func (f Folders) Dir(s State) string {
	return f.dirs[s]
}

// StateOf reports which state the parent directory of p represents.
func (f Folders) StateOf(p string) (State, bool) {
	parent := strings.ToLower(path.Dir(p))
	for s, dir := range f.dirs {
		if strings.ToLower(dir) == parent {
			return s, true
		}
	}
	return "", false
}

// Destination computes where an item at p lands when entering s.
func (f Folders) Destination(p string, s State) string {
	return path.Join(f.dirs[s], path.Base(p))
}

func cleanDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return ""
	}
	if dir == "/" {
		return dir
	}
	return path.Clean(dir)
}
