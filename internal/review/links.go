package review

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"image-review/backend/internal/backend"
)

const rawMarker = "raw=1"

// LinkResolver turns a backend path into a URL a browser can render inline.
type LinkResolver struct {
	client backend.Client
	logger Logger
}

// NewLinkResolver creates a LinkResolver.
func NewLinkResolver(client backend.Client, logger Logger) *LinkResolver {
	return &LinkResolver{client: client, logger: orNop(logger)}
}

// Resolve reuses the first direct file link the backend returns for p, or
// creates one, and rewrites it for inline display. A concurrent creation is
// answered by listing once more.
func (r *LinkResolver) Resolve(ctx context.Context, p string) (string, error) {
	link, ok, err := r.existing(ctx, p)
	if err != nil {
		return "", err
	}

	if !ok {
		created, err := r.client.CreateSharedLink(ctx, p)
		switch {
		case err == nil:
			r.logger.Debug("shared link created", "path", p)
			link = created.URL
		case errors.Is(err, backend.ErrConflict):
			r.logger.Debug("shared link created concurrently, listing again", "path", p)
			link, ok, err = r.existing(ctx, p)
			if err != nil {
				return "", err
			}
			if !ok {
				return "", fmt.Errorf("%w: %s: link reported as existing but not listed", ErrLinkResolution, p)
			}
		default:
			return "", fmt.Errorf("%w: %s: %w", ErrLinkResolution, p, err)
		}
	}

	raw, marked := RawURL(link)
	if !marked {
		r.logger.Warn("shared link has no inline marker after rewrite", "path", p, "url", link)
	}
	return raw, nil
}

func (r *LinkResolver) existing(ctx context.Context, p string) (string, bool, error) {
	links, err := r.client.ListSharedLinks(ctx, p)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %w", ErrLinkResolution, p, err)
	}
	for _, l := range links {
		if l.Kind == backend.KindFile {
			r.logger.Debug("existing shared link found", "path", p)
			return l.URL, true, nil
		}
	}
	return "", false, nil
}

// RawURL replaces the download marker (dl=0 or dl=1) in a shared link query
// with raw=1 so clients render the file instead of downloading it. The
// rewrite is idempotent. The boolean reports whether the result carries the
// raw marker; false means the link format was not recognised.
func RawURL(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return link, false
	}

	params := strings.Split(u.RawQuery, "&")
	out := make([]string, 0, len(params))
	hasRaw := false
	for _, p := range params {
		switch p {
		case "":
			continue
		case rawMarker:
			if hasRaw {
				continue
			}
			hasRaw = true
		case "dl=0", "dl=1":
			if hasRaw {
				continue
			}
			p = rawMarker
			hasRaw = true
		}
		out = append(out, p)
	}
	if !hasRaw {
		return link, false
	}

	u.RawQuery = strings.Join(out, "&")
	return u.String(), true
}
