package events

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"CartCast/pkg/kit"
)

type Server struct {
	Broadcaster *Broadcaster
	Log         *zap.Logger
	PopupURL    string
	// Heartbeat is the interval of keep-alive comments on open streams.
	// Zero disables them.
	Heartbeat time.Duration
}

type popupResp struct {
	Status    string `json:"status"`
	Delivered int    `json:"delivered"`
}

func (s *Server) TriggerHandler() http.HandlerFunc { return s.trigger }
func (s *Server) StreamHandler() http.HandlerFunc  { return s.stream }

func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	ev := NewPopupEvent(s.PopupURL)
	n := s.Broadcaster.Broadcast(ev)

	s.logger().Info("popup broadcast",
		zap.String("event_id", ev.ID),
		zap.String("url", s.PopupURL),
		zap.Int("delivered", n),
	)
	kit.WriteJSON(w, http.StatusOK, popupResp{Status: "sent", Delivered: n})
}

// stream holds an SSE connection open until the client goes away or the
// subscription is closed by the broadcaster.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := s.Broadcaster.Subscribe()
	defer s.Broadcaster.Unsubscribe(sub)

	log := s.logger().With(zap.String("subscriber_id", sub.ID()))
	log.Debug("subscriber connected")
	defer log.Debug("subscriber disconnected")

	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		log.Warn("streaming unsupported", zap.Error(err))
		return
	}

	var heartbeat <-chan time.Time
	if s.Heartbeat > 0 {
		t := time.NewTicker(s.Heartbeat)
		defer t.Stop()
		heartbeat = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done():
			return
		case ev := <-sub.Events():
			if err := writeEvent(w, ev); err != nil {
				log.Debug("write event failed", zap.Error(err))
				return
			}
		case <-heartbeat:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w io.Writer, ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	if ev.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", ev.ID); err != nil {
			return err
		}
	}
	if ev.Name != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", ev.Name); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
