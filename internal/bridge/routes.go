package bridge

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/supportline/internal/connector"
)

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	UptimeMs int64  `json:"uptimeMs,omitempty"`
}

// AgentMessage is the body of POST /agent/messages. An empty SessionID
// broadcasts to every open session.
type AgentMessage struct {
	SessionID string `json:"sessionId,omitempty"`
	Text      string `json:"text"`
	From      string `json:"from,omitempty"`
}

// registerRoutes sets up all HTTP routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /poll", s.handlePollOpen)
	mux.HandleFunc("GET /poll/{sid}", s.handlePollReceive)
	mux.HandleFunc("POST /poll/{sid}", s.handlePollSend)
	mux.HandleFunc("DELETE /poll/{sid}", s.handlePollClose)
	mux.HandleFunc("POST /agent/messages", s.handleAgentMessage)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Sessions: s.sessions.Count()}
	if !s.startedAt.IsZero() {
		resp.UptimeMs = time.Since(s.startedAt).Milliseconds()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePollOpen(w http.ResponseWriter, r *http.Request) {
	sess := newPollSession()
	s.sessions.Add(sess)
	writeJSON(w, http.StatusOK, map[string]string{"sid": sess.ID()})
}

func (s *Server) pollSession(w http.ResponseWriter, r *http.Request) (*pollSession, bool) {
	sess, ok := s.sessions.Get(r.PathValue("sid"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return nil, false
	}
	ps, ok := sess.(*pollSession)
	if !ok {
		writeError(w, http.StatusNotFound, "not a polling session")
		return nil, false
	}
	return ps, true
}

func (s *Server) handlePollReceive(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.pollSession(w, r)
	if !ok {
		return
	}
	wait := maxPollWait
	if ms, err := strconv.Atoi(r.URL.Query().Get("waitMs")); err == nil && ms >= 0 {
		wait = min(time.Duration(ms)*time.Millisecond, maxPollWait)
	}

	frames, err := sess.drain(r.Context(), wait)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, frames)
}

func (s *Server) handlePollSend(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.pollSession(w, r)
	if !ok {
		return
	}
	sess.touch()
	var f connector.Frame
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameBytes)).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid frame")
		return
	}
	s.receive(r.Context(), sess, f)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePollClose(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.pollSession(w, r); !ok {
		return
	}
	s.endSession(r.PathValue("sid"))
	w.WriteHeader(http.StatusNoContent)
}

// handleAgentMessage lets an operator push a reply to visitors.
func (s *Server) handleAgentMessage(w http.ResponseWriter, r *http.Request) {
	var msg AgentMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameBytes)).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	from := msg.From
	if from == "" {
		from = s.agentName()
	}

	delivered := 0
	if msg.SessionID != "" {
		sess, ok := s.sessions.Get(msg.SessionID)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		if err := s.deliver(sess, msg.Text, from); err != nil {
			writeError(w, http.StatusGone, err.Error())
			return
		}
		delivered = 1
	} else {
		f, err := s.agentFrame(msg.Text, from)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		delivered = s.sessions.Broadcast(f)
		for range delivered {
			s.metrics.Frame("out")
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
