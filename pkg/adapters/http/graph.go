package http

import (
	"errors"
	"net/http"

	"github.com/aretw0/duzhibot"
	"github.com/aretw0/duzhibot/internal/presentation/graph"
	"github.com/aretw0/duzhibot/pkg/domain"
)

// GetGraph handles the GET /graph request.
//
// Query: machine (world, lexer or parser; default world), format (json or mermaid; default
// json) and session, which overlays that session's trail on a world diagram.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	machine := q.Get("machine")
	if machine == "" {
		machine = duzhibot.MachineWorld
	}

	g, err := s.bot.Graph(machine)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownMachine) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch q.Get("format") {
	case "", "json":
		writeJSON(w, s.logger, g)
	case "mermaid":
		var overlay *graph.Overlay
		if id := q.Get("session"); id != "" && machine == duzhibot.MachineWorld {
			state, err := s.sessions.Load(r.Context(), id)
			switch {
			case errors.Is(err, domain.ErrSessionNotFound):
				http.Error(w, "session not found", http.StatusNotFound)
				return
			case err != nil:
				s.logger.Error("Graph: session load failed", "session_id", id, "error", err)
				http.Error(w, "session load failed", http.StatusInternalServerError)
				return
			}
			overlay = &graph.Overlay{Visited: state.History, Current: state.Path}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(graph.Mermaid(g, overlay)))
	default:
		http.Error(w, "format must be json or mermaid", http.StatusBadRequest)
	}
}
