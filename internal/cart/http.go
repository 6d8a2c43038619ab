package cart

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"CartCast/pkg/kit"
)

const sessionHeader = "X-Session-Id"

type Server struct {
	Engine         *Engine
	Log            *zap.Logger
	DefaultSession string
}

type cartResponse struct {
	SessionID string  `json:"session_id"`
	Items     []Item  `json:"items"`
	Total     float64 `json:"total"`
}

// Routes serves one cart. Mount it where the session is implicit, or under a
// path carrying {sessionID}.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.get)
	r.Post("/add", s.add)
	r.Post("/remove", s.remove)
	r.Post("/delete", s.delete)
	r.Post("/seats/purchase", s.purchaseSeats)
	r.Post("/seats/upgrade", s.upgradeSeat)

	return r
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(r, request{})

	c, err := s.Engine.Get(r.Context(), sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeCart(w, sid, c)
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, func(sid string, req request) (Cart, error) {
		return s.Engine.AddItems(r.Context(), sid, req.Args.lines())
	})
}

// remove bulk-decrements when the payload carries quantities and falls back
// to the single-unit flow for a bare id.
func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, func(sid string, req request) (Cart, error) {
		if req.Args.Items == nil && req.Args.Quantity == nil {
			return s.Engine.DecrementOrRemove(r.Context(), sid, req.Args.ID)
		}
		return s.Engine.RemoveItems(r.Context(), sid, req.Args.lines())
	})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, func(sid string, req request) (Cart, error) {
		return s.Engine.DeleteItem(r.Context(), sid, req.Args.ID)
	})
}

func (s *Server) purchaseSeats(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, func(sid string, req request) (Cart, error) {
		qty := 1
		if req.Args.Quantity != nil {
			qty = int(*req.Args.Quantity)
		}
		return s.Engine.ApplyCannedItem(r.Context(), sid, SeatPurchase, qty, req.Args.Description)
	})
}

func (s *Server) upgradeSeat(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, func(sid string, _ request) (Cart, error) {
		return s.Engine.ApplyCannedItem(r.Context(), sid, SeatUpgrade, 1, "")
	})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request, op func(sid string, req request) (Cart, error)) {
	req, err := decodeRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sid := s.sessionID(r, req)
	if s.Log != nil {
		s.Log.Debug("cart mutation",
			zap.String("session_id", sid),
			zap.String("tool_call_id", req.ToolCallID),
			zap.String("path", r.URL.Path),
		)
	}

	c, err := op(sid, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeCart(w, sid, c)
}

// sessionID resolves the cart key: path, envelope, header, query, default.
func (s *Server) sessionID(r *http.Request, req request) string {
	if id := chi.URLParam(r, "sessionID"); id != "" {
		return id
	}
	if req.SessionID != "" {
		return req.SessionID
	}
	if id := strings.TrimSpace(r.Header.Get(sessionHeader)); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.URL.Query().Get("session_id")); id != "" {
		return id
	}
	return s.DefaultSession
}

func (s *Server) writeCart(w http.ResponseWriter, sid string, c Cart) {
	items := c.Items
	if items == nil {
		items = []Item{}
	}
	kit.WriteJSON(w, http.StatusOK, cartResponse{
		SessionID: sid,
		Items:     items,
		Total:     c.Total(),
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		kit.WriteError(w, r, http.StatusBadRequest, "bad request", map[string]any{
			"field":  ve.Field,
			"reason": ve.Reason,
		})
		return
	}
	kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
}
