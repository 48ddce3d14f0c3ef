package review

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"image-review/backend/internal/backend"
)

// TransitionRequest is a reviewer decision on one item.
type TransitionRequest struct {
	Action string
	ItemID string
}

// Machine moves items between workflow folders.
//
// It does not check that an item currently sits in the pending folder: the id
// based move makes the destination correct regardless, and a repeated
// decision on an already decided item simply lands it in the new target
// folder.
type Machine struct {
	client       backend.Client
	folders      Folders
	disambiguate bool
	logger       Logger
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithCollisionSuffix makes a move whose destination is taken retry once with
// the item id appended to the file name.
func WithCollisionSuffix() MachineOption {
	return func(m *Machine) {
		m.disambiguate = true
	}
}

// NewMachine creates a Machine.
func NewMachine(client backend.Client, folders Folders, logger Logger, opts ...MachineOption) *Machine {
	m := &Machine{client: client, folders: folders, logger: orNop(logger)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Transition validates action and moves the item identified by itemID into
// the action's target folder. Validation happens before any backend call.
func (m *Machine) Transition(ctx context.Context, itemID, action string) (backend.Item, error) {
	act, err := ParseAction(action)
	if err != nil {
		return backend.Item{}, err
	}
	if itemID == "" {
		return backend.Item{}, fmt.Errorf("%w: uniqueID", ErrMissingParameter)
	}

	current, err := m.client.GetMetadata(ctx, itemID)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return backend.Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
		}
		return backend.Item{}, fmt.Errorf("%w: resolve %s: %w", ErrBackendUnavailable, itemID, err)
	}

	source, known := m.folders.StateOf(current.Path)
	if !known {
		source = "unknown"
	}
	if source != Pending {
		m.logger.Warn("item is not in the pending folder", "id", itemID, "path", current.Path, "state", source)
	}

	target := act.Target()
	dest := m.folders.Destination(current.Path, target)
	if strings.EqualFold(current.Path, dest) {
		m.logger.Debug("item already in target folder", "id", itemID, "path", current.Path, "state", target)
		return current, nil
	}

	moved, err := m.client.Move(ctx, current.Path, dest)
	if errors.Is(err, backend.ErrAlreadyExists) && m.disambiguate {
		alt := suffixed(dest, itemID)
		m.logger.Info("destination taken, retrying with id suffix", "id", itemID, "from", dest, "to", alt)
		moved, err = m.client.Move(ctx, current.Path, alt)
	}
	if err != nil {
		switch {
		case errors.Is(err, backend.ErrAlreadyExists):
			return backend.Item{}, fmt.Errorf("%w: %s already exists", ErrTransitionConflict, dest)
		case errors.Is(err, backend.ErrNotFound):
			return backend.Item{}, fmt.Errorf("%w: %s vanished before move", ErrItemNotFound, current.Path)
		default:
			return backend.Item{}, fmt.Errorf("%w: move %s: %w", ErrBackendUnavailable, current.Path, err)
		}
	}

	if moved.ID == "" {
		moved.ID = current.ID
	}
	m.logger.Info("item transitioned", "id", moved.ID, "action", act, "from_state", source, "from", current.Path, "to", moved.Path)
	return moved, nil
}

// suffixed inserts a sanitized id before the extension of p.
func suffixed(p, id string) string {
	id = strings.TrimPrefix(id, "id:")
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, id)

	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext) + "_" + clean + ext
}
