// Package models defines the wire types of the review HTTP API.
package models

// Welcome is returned by GET /.
type Welcome struct {
	Title string `json:"title"`
}

// Image is returned by GET /image.
type Image struct {
	ImageURL string `json:"image_url"`
	ID       string `json:"id"`
}

// MoveRequest is the body of POST /move.
type MoveRequest struct {
	Action   string `json:"action" form:"action"`
	UniqueID string `json:"uniqueID" form:"uniqueID"`
}

// Message is a plain success response.
type Message struct {
	Message string `json:"message"`
}

// Error is the body of every failed response.
type Error struct {
	Error string `json:"error"`
}

// Health is returned by GET /healthz.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}
