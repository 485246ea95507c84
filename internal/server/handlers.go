package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/biodoia/roundtable/internal/forum"
	"github.com/biodoia/roundtable/internal/persona"
	"github.com/biodoia/roundtable/pkg/middleware"
	"github.com/biodoia/roundtable/pkg/models"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// ChatRequest è il corpo di POST /chat
type ChatRequest struct {
	Topic           string           `json:"topic"`
	Characters      []map[string]any `json:"characters,omitempty"`
	Rounds          *int             `json:"rounds,omitempty"`
	DurationSeconds *int             `json:"duration_seconds,omitempty"`
	SessionID       string           `json:"session_id,omitempty"`
	Stream          bool             `json:"stream"`
}

// SessionResponse è la risposta di GET /sessions/:id
type SessionResponse struct {
	Session    *models.Session `json:"session"`
	Transcript []forum.Turn    `json:"transcript"`
}

// toForumRequest applica i default di configurazione e risolve le persona
func (s *Server) toForumRequest(req *ChatRequest) forum.Request {
	rounds := s.config.Chat.DefaultRounds
	if req.Rounds != nil {
		rounds = *req.Rounds
	}
	duration := s.config.Chat.DefaultDurationSeconds
	if req.DurationSeconds != nil {
		duration = *req.DurationSeconds
	}

	resolved := persona.FromRequest(req.Characters, s.config.Chat.CharactersFile)

	return forum.Request{
		Topic:           strings.TrimSpace(req.Topic),
		Rounds:          rounds,
		DurationSeconds: duration,
		Personas:        resolved.Personas,
		SessionID:       req.SessionID,
		Mode:            models.SessionModeAPI,
	}
}

// handleChat avvia una discussione; con stream=true risponde in text/event-stream
func (s *Server) handleChat(c fiber.Ctx) error {
	var body ChatRequest
	if err := c.Bind().Body(&body); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", forum.ErrInvalidRequest, err)
	}

	req := s.toForumRequest(&body)
	if err := req.Validate(); err != nil {
		return err
	}

	if body.Stream {
		return s.streamChat(c, req)
	}

	result, err := s.orchestrator.Run(c.Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// streamChat scrive gli eventi della discussione come "data: <json>\n\n".
// Un errore dopo l'invio degli header diventa un evento di tipo "error".
func (s *Server) streamChat(c fiber.Ctx, req forum.Request) error {
	requestID := middleware.GetRequestID(c)

	c.Set("Content-Type", "text/event-stream; charset=utf-8")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// lo stream writer gira dopo il ritorno dell'handler: il context della
	// richiesta non è più valido, la discussione si ferma se il client chiude
	return c.SendStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		emit := func(ev forum.Event) error {
			return writeEvent(w, ev)
		}

		result, err := s.orchestrator.Stream(ctx, req, emit)
		if err == nil {
			return
		}

		turns := 0
		if result != nil {
			turns = len(result.Transcript)
		}
		log.Error().
			Err(err).
			Str("request_id", requestID).
			Int("turns", turns).
			Msg("streamed discussion aborted")

		_ = writeEvent(w, fiber.Map{
			"type":       "error",
			"status":     StatusFor(err),
			"detail":     err.Error(),
			"request_id": requestID,
		})
	})
}

func writeEvent(w *bufio.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}

// handleListSessions elenca le sessioni più recenti (?limit=, default 20)
func (s *Server) handleListSessions(c fiber.Ctx) error {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return fmt.Errorf("%w: limit must be a positive integer", forum.ErrInvalidRequest)
		}
		limit = n
	}

	sessions, err := s.store.Sessions(c.Context(), limit)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleGetSession restituisce una sessione con il transcript completo
func (s *Server) handleGetSession(c fiber.Ctx) error {
	id := c.Params("id")

	session, err := s.store.Session(c.Context(), id)
	if err != nil {
		return err
	}

	records, err := s.store.Transcript(c.Context(), id)
	if err != nil {
		return err
	}

	transcript := make([]forum.Turn, len(records))
	for i, r := range records {
		transcript[i] = forum.FromModel(r)
	}

	return c.JSON(SessionResponse{Session: session, Transcript: transcript})
}
