package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/askweb/internal/pipeline"
	"github.com/mohammad-safakhou/askweb/provider/models"
	"github.com/mohammad-safakhou/askweb/session"
)

// Asker is the part of the pipeline the chat handler needs.
type Asker interface {
	Run(ctx context.Context, question string, history []models.Message) (*pipeline.Answer, error)
}

type ChatHandler struct {
	Chain   Asker
	History session.Store
	Logger  *zap.Logger
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("", h.chat)
	g.GET("/history", h.getHistory)
	g.DELETE("/history", h.clearHistory)
}

// chat answers a question and streams the answer as Server-Sent Events:
// one links event, delta events, then done or error.
//
//	@Summary	Ask a question
//	@Tags		chat
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Accept		json
//	@Param		payload	body	ChatRequest	true	"Question"
//	@Produce	text/event-stream
//	@Success	200	{string}	string
//	@Failure	400	{object}	HTTPError
//	@Failure	502	{object}	HTTPError
//	@Router		/api/chat [post]
func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question required")
	}
	ctx := c.Request().Context()
	userID, _ := c.Get("user_id").(string)

	history := pipeline.ConversationalHistory(req.History)
	if len(history) == 0 && h.History != nil && userID != "" {
		stored, err := h.History.Load(ctx, userID)
		if err != nil {
			h.logger().Warn("load history failed", zap.String("user_id", userID), zap.Error(err))
		}
		history = stored
	}

	ans, err := h.Chain.Run(ctx, req.Question, history)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyQuestion) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	send := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := send("links", LinksEvent{Links: ans.Links, Found: ans.Found}); err != nil {
		return nil
	}
	var answer strings.Builder
	for chunk := range ans.Stream {
		if chunk.Err != nil {
			h.logger().Warn("answer stream failed", zap.Error(chunk.Err))
			_ = send("error", HTTPError{Error: chunk.Err.Error()})
			return nil
		}
		if chunk.Content != "" {
			answer.WriteString(chunk.Content)
			if err := send("delta", DeltaEvent{Content: chunk.Content}); err != nil {
				// client went away; drain so the producer can finish
				for range ans.Stream {
				}
				return nil
			}
		}
	}
	_ = send("done", DoneEvent{Questions: ans.Questions})

	if h.History != nil && userID != "" && answer.Len() > 0 {
		err := h.History.Append(context.WithoutCancel(ctx), userID,
			models.Message{Role: models.RoleUser, Content: req.Question},
			models.Message{Role: models.RoleAssistant, Content: answer.String()},
		)
		if err != nil {
			h.logger().Warn("append history failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return nil
}

// getHistory
//
//	@Summary	Stored chat history
//	@Tags		chat
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	HistoryResponse
//	@Router		/api/chat/history [get]
func (h *ChatHandler) getHistory(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	if h.History == nil {
		return c.JSON(http.StatusOK, HistoryResponse{Messages: []models.Message{}})
	}
	msgs, err := h.History.Load(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return c.JSON(http.StatusOK, HistoryResponse{Messages: msgs})
}

// clearHistory
//
//	@Summary	Forget the chat history
//	@Tags		chat
//	@Security	BearerAuth
//	@Success	204
//	@Router		/api/chat/history [delete]
func (h *ChatHandler) clearHistory(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	if h.History != nil {
		if err := h.History.Clear(c.Request().Context(), userID); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ChatHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
