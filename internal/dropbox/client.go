// Package dropbox implements backend.Client on top of the Dropbox API v2.
package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"image-review/backend/internal/backend"
)

// DefaultAPIURL is the Dropbox RPC host.
const DefaultAPIURL = "https://api.dropboxapi.com"

// Client talks to the Dropbox RPC endpoints. It never retries.
type Client struct {
	http   *http.Client
	apiURL string
}

// NewClient creates a Client. httpClient must already attach credentials,
// see NewHTTPClient.
func NewClient(httpClient *http.Client, apiURL string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{http: httpClient, apiURL: strings.TrimRight(apiURL, "/")}
}

// ListFolder lists dir and follows the continuation cursor until exhausted.
func (c *Client) ListFolder(ctx context.Context, dir string) ([]backend.Entry, error) {
	var res listFolderResult
	if err := c.rpc(ctx, "/2/files/list_folder", listFolderArg{Path: rootPath(dir)}, &res); err != nil {
		return nil, fmt.Errorf("list folder %s: %w", dir, err)
	}
	entries := toEntries(res.Entries)

	for res.HasMore {
		cursor := res.Cursor
		res = listFolderResult{}
		if err := c.rpc(ctx, "/2/files/list_folder/continue", listFolderContinueArg{Cursor: cursor}, &res); err != nil {
			return nil, fmt.Errorf("list folder %s: %w", dir, err)
		}
		entries = append(entries, toEntries(res.Entries)...)
	}
	return entries, nil
}

// GetMetadata resolves an id (with or without the "id:" prefix).
func (c *Client) GetMetadata(ctx context.Context, id string) (backend.Item, error) {
	if !strings.HasPrefix(id, "id:") {
		id = "id:" + id
	}
	var md metadata
	if err := c.rpc(ctx, "/2/files/get_metadata", getMetadataArg{Path: id}, &md); err != nil {
		return backend.Item{}, fmt.Errorf("get metadata %s: %w", id, err)
	}
	if md.Tag != "file" {
		return backend.Item{}, fmt.Errorf("get metadata %s: %s is a %s: %w", id, md.path(), md.Tag, backend.ErrNotFound)
	}
	return backend.Item{ID: md.ID, Path: md.path()}, nil
}

// ListSharedLinks returns the direct links of path in the order Dropbox
// enumerates them.
func (c *Client) ListSharedLinks(ctx context.Context, path string) ([]backend.SharedLink, error) {
	arg := listSharedLinksArg{Path: path, DirectOnly: true}
	var links []backend.SharedLink
	for {
		var res listSharedLinksResult
		if err := c.rpc(ctx, "/2/sharing/list_shared_links", arg, &res); err != nil {
			return nil, fmt.Errorf("list shared links %s: %w", path, err)
		}
		for _, l := range res.Links {
			links = append(links, toLink(l))
		}
		if !res.HasMore || res.Cursor == "" {
			return links, nil
		}
		arg.Cursor = res.Cursor
	}
}

// CreateSharedLink creates a public, non-expiring link.
func (c *Client) CreateSharedLink(ctx context.Context, path string) (backend.SharedLink, error) {
	var res sharedLinkMetadata
	if err := c.rpc(ctx, "/2/sharing/create_shared_link_with_settings", createSharedLinkArg{Path: path}, &res); err != nil {
		return backend.SharedLink{}, fmt.Errorf("create shared link %s: %w", path, err)
	}
	return toLink(res), nil
}

// Move relocates a file without autorename so collisions surface as errors.
func (c *Client) Move(ctx context.Context, from, to string) (backend.Item, error) {
	var res relocationResult
	if err := c.rpc(ctx, "/2/files/move_v2", relocationArg{FromPath: from, ToPath: to}, &res); err != nil {
		return backend.Item{}, fmt.Errorf("move %s to %s: %w", from, to, err)
	}
	return backend.Item{ID: res.Metadata.ID, Path: res.Metadata.path()}, nil
}

func (c *Client) rpc(ctx context.Context, route string, arg, out any) error {
	body, err := json.Marshal(arg)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+route, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response body: %v", backend.ErrUnavailable, err)
	}
	return nil
}

// decodeError maps a Dropbox error response onto the backend sentinels.
// Endpoint-specific errors arrive as 409 with a slash separated summary such
// as "from_lookup/not_found/..".
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("%w: status %d: %s", backend.ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var apiErr apiError
	if err := json.Unmarshal(raw, &apiErr); err != nil {
		return fmt.Errorf("%w: status 409: %s", backend.ErrUnavailable, strings.TrimSpace(string(raw)))
	}
	return fmt.Errorf("%s: %w", apiErr.Summary, classify(apiErr.Summary))
}

func classify(summary string) error {
	switch {
	case strings.HasPrefix(summary, "shared_link_already_exists"):
		return backend.ErrConflict
	case strings.Contains(summary, "not_found"):
		return backend.ErrNotFound
	case strings.HasPrefix(summary, "to/conflict"):
		return backend.ErrAlreadyExists
	default:
		return backend.ErrUnavailable
	}
}

func toEntries(in []metadata) []backend.Entry {
	entries := make([]backend.Entry, 0, len(in))
	for _, md := range in {
		e := backend.Entry{Path: md.path(), Name: md.Name}
		switch md.Tag {
		case "file":
			e.Kind = backend.KindFile
			e.ID = md.ID
		case "folder":
			e.Kind = backend.KindFolder
		case "deleted":
			e.Kind = backend.KindDeleted
		default:
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

func toLink(l sharedLinkMetadata) backend.SharedLink {
	kind := backend.KindFile
	if l.Tag == "folder" {
		kind = backend.KindFolder
	}
	return backend.SharedLink{URL: l.URL, Path: l.PathLower, Kind: kind}
}

// rootPath converts "/" to the empty string Dropbox uses for the root.
func rootPath(dir string) string {
	if dir == "/" {
		return ""
	}
	return strings.TrimRight(dir, "/")
}
