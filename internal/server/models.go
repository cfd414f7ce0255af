package server

import (
	"github.com/mohammad-safakhou/askweb/internal/store"
	"github.com/mohammad-safakhou/askweb/provider/models"
)

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// ChatRequest is the body of POST /api/chat. When History is empty the
// stored history of the caller is used.
type ChatRequest struct {
	Question string           `json:"question"`
	History  []models.Message `json:"history,omitempty"`
}

// LinksEvent is the first event of a chat stream.
type LinksEvent struct {
	Links map[string]string `json:"links"`
	Found bool              `json:"found"`
}

type DeltaEvent struct {
	Content string `json:"content"`
}

type DoneEvent struct {
	Questions []string `json:"questions"`
}

type HistoryResponse struct {
	Messages []models.Message `json:"messages"`
}

type RunsResponse struct {
	Runs []store.Run `json:"runs"`
}
