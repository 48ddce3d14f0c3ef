// Package mcp exposes the review queue to MCP clients, so an agent can pull
// the next item and record a decision the same way a reviewer does over HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"image-review/backend/internal/api"
	"image-review/backend/internal/auth"
	"image-review/backend/internal/review"
)

// agentReviewer identifies calls that arrive without an authenticated principal.
const agentReviewer = "mcp"

type Server struct {
	mcpServer *server.MCPServer
	reviews   api.Reviewer
}

func NewServer(reviews api.Reviewer, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Image Review",
			version,
			server.WithToolCapabilities(true),
		),
		reviews: reviews,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"next_item",
			mcp.WithDescription("Pick a random pending item and return a direct link to it"),
		),
		s.handleNextItem,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"record_decision",
			mcp.WithDescription("Move an item into the folder for the given decision"),
			mcp.WithString("action", mcp.Required(), mcp.Enum("approve", "delete", "rework"), mcp.Description("The review decision")),
			mcp.WithString("id", mcp.Required(), mcp.Description("The item ID returned by next_item")),
		),
		s.handleRecordDecision,
	)
}

func (s *Server) handleNextItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.reviews.Next(ctx, reviewerOf(ctx))
	if err != nil {
		_, msg := api.Classify(err)
		if review.IsEmpty(err) {
			return mcp.NewToolResultText(msg), nil
		}
		return mcp.NewToolResultError(msg), nil
	}

	jsonBytes, _ := json.Marshal(map[string]string{"image_url": p.URL, "id": p.ID, "name": p.Item.DisplayName()})
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleRecordDecision(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	action, _ := args["action"].(string)
	id, _ := args["id"].(string)

	item, err := s.reviews.Decide(ctx, reviewerOf(ctx), review.TransitionRequest{Action: action, ItemID: id})
	if err != nil {
		_, msg := api.Classify(err)
		return mcp.NewToolResultError(msg), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("File moved to %s", item.Path)), nil
}

func reviewerOf(ctx context.Context) string {
	if id, ok := auth.CallerID(ctx); ok {
		return id
	}
	return agentReviewer
}

// MountHTTPHandlers serves the SSE transport under /mcp. The principal placed
// on the request by the auth middleware is carried into tool calls.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer,
		server.WithStaticBasePath("/mcp"),
		server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if p, ok := auth.PrincipalFrom(r.Context()); ok {
				return auth.WithPrincipal(ctx, p)
			}
			return ctx
		}),
	)

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
