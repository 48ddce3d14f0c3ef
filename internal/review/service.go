// Package review implements the review workflow: picking the next pending
// item, exposing it through a shared link and recording a reviewer's decision
// by moving the item between state folders.
//
// The backend folder layout is the only state. Nothing is cached between
// requests.
package review

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"image-review/backend/internal/backend"
)

// Notifier is told when the pending folder runs dry. Failures are logged and
// never reach the caller.
type Notifier interface {
	QueueEmpty(ctx context.Context, folder string) error
}

// Recorder receives outcome counts.
type Recorder interface {
	Selection(result string)
	Transition(action, result string)
}

// Presented is an item ready to show to a reviewer.
type Presented struct {
	ID   string
	URL  string
	Item backend.Item
}

// Service is the entry point used by the HTTP and MCP surfaces.
type Service struct {
	folders  Folders
	selector *Selector
	resolver *LinkResolver
	machine  *Machine
	notifier Notifier
	recorder Recorder
	logger   Logger
	tracer   trace.Tracer
}

// Deps carries the collaborators of a Service. Notifier and Recorder are
// optional.
type Deps struct {
	Folders  Folders
	Selector *Selector
	Resolver *LinkResolver
	Machine  *Machine
	Notifier Notifier
	Recorder Recorder
	Logger   Logger
}

// NewService creates a Service.
func NewService(d Deps) *Service {
	return &Service{
		folders:  d.Folders,
		selector: d.Selector,
		resolver: d.Resolver,
		machine:  d.Machine,
		notifier: d.Notifier,
		recorder: d.Recorder,
		logger:   orNop(d.Logger),
		tracer:   otel.Tracer("image-review/backend/internal/review"),
	}
}

// Next selects a pending item and resolves a displayable link for it. When the
// queue is empty the notifier is invoked once and ErrEmptyQueue is returned.
func (s *Service) Next(ctx context.Context, reviewer string) (Presented, error) {
	ctx, span := s.tracer.Start(ctx, "review.Next")
	defer span.End()

	pending := s.folders.Dir(Pending)
	s.logger.Debug("selecting pending item", "folder", pending, "reviewer", reviewer)

	item, err := s.selector.SelectPending(ctx, reviewer)
	switch {
	case errors.Is(err, ErrEmptyQueue):
		s.logger.Warn("no files found in pending folder", "folder", pending)
		s.record(func(r Recorder) { r.Selection("empty") })
		s.notifyEmpty(ctx, pending)
		return Presented{}, err
	case errors.Is(err, ErrAllReserved):
		s.logger.Info("all pending files reserved", "folder", pending, "reviewer", reviewer)
		s.record(func(r Recorder) { r.Selection("reserved") })
		return Presented{}, err
	case err != nil:
		s.logger.Error("failed to select pending item", "folder", pending, "error", err)
		s.record(func(r Recorder) { r.Selection("error") })
		fail(span, err)
		return Presented{}, err
	}
	span.SetAttributes(attribute.String("review.item_id", item.ID))
	s.logger.Debug("random file selected", "id", item.ID, "name", item.DisplayName())

	url, err := s.resolver.Resolve(ctx, item.Path)
	if err != nil {
		s.logger.Error("failed to resolve shared link", "path", item.Path, "error", err)
		if relErr := s.selector.release(ctx, item.ID, reviewer); relErr != nil {
			s.logger.Warn("failed to release reservation", "id", item.ID, "error", relErr)
		}
		s.record(func(r Recorder) { r.Selection("error") })
		fail(span, err)
		return Presented{}, err
	}

	s.record(func(r Recorder) { r.Selection("ok") })
	return Presented{ID: item.ID, URL: url, Item: item}, nil
}

// Decide applies a reviewer decision.
func (s *Service) Decide(ctx context.Context, reviewer string, req TransitionRequest) (backend.Item, error) {
	ctx, span := s.tracer.Start(ctx, "review.Decide", trace.WithAttributes(
		attribute.String("review.action", req.Action),
		attribute.String("review.item_id", req.ItemID),
	))
	defer span.End()

	item, err := s.machine.Transition(ctx, req.ItemID, req.Action)
	if err != nil {
		s.record(func(r Recorder) { r.Transition(actionLabel(req.Action), outcome(err)) })
		if errors.Is(err, ErrInvalidAction) || errors.Is(err, ErrMissingParameter) {
			s.logger.Info("rejected decision", "action", req.Action, "id", req.ItemID, "error", err)
		} else {
			s.logger.Error("failed to apply decision", "action", req.Action, "id", req.ItemID, "error", err)
			fail(span, err)
		}
		return backend.Item{}, err
	}

	if err := s.selector.release(ctx, req.ItemID, reviewer); err != nil {
		s.logger.Warn("failed to release reservation", "id", req.ItemID, "error", err)
	}
	s.record(func(r Recorder) { r.Transition(req.Action, "ok") })
	return item, nil
}

func (s *Service) notifyEmpty(ctx context.Context, folder string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.QueueEmpty(context.WithoutCancel(ctx), folder); err != nil {
		s.logger.Error("failed to send exhaustion notification", "folder", folder, "error", err)
	}
}

func (s *Service) record(fn func(Recorder)) {
	if s.recorder != nil {
		fn(s.recorder)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAction), errors.Is(err, ErrMissingParameter):
		return "invalid"
	case errors.Is(err, ErrItemNotFound):
		return "not_found"
	case errors.Is(err, ErrTransitionConflict):
		return "conflict"
	default:
		return "error"
	}
}

// actionLabel keeps metric labels bounded to the known actions.
func actionLabel(raw string) string {
	if _, ok := transitions[Action(raw)]; ok {
		return raw
	}
	return "other"
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
