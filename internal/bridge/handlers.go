package bridge

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/rackhost/internal/events"
	"github.com/mattjoyce/rackhost/internal/midi"
	"github.com/mattjoyce/rackhost/internal/param"
)

const maxBodyBytes = 4 << 10

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Ready:         s.bank.Frozen(),
	}
	if resp.Ready {
		resp.Params = s.bank.Len()
	}
	respondJSON(w, http.StatusOK, resp)
}

func toResponse(p *param.Param) ParamResponse {
	return ParamResponse{
		ID:      p.ID,
		Name:    p.Name,
		Min:     p.Min,
		Max:     p.Max,
		Default: p.Default,
		Value:   p.Slot.Read(),
	}
}

func (s *Server) handleListParams(w http.ResponseWriter, r *http.Request) {
	all := s.bank.All()
	out := make([]ParamResponse, 0, len(all))
	for _, p := range all {
		out = append(out, toResponse(p))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetParam(w http.ResponseWriter, r *http.Request) {
	p, ok := s.bank.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "param not found")
		return
	}
	respondJSON(w, http.StatusOK, toResponse(p))
}

// handleSetParam proposes a value the same way a knob drag does.
func (s *Server) handleSetParam(w http.ResponseWriter, r *http.Request) {
	p, ok := s.bank.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "param not found")
		return
	}

	var req SetParamRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Value == nil {
		s.writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	v := p.Clamp(*req.Value)
	p.Slot.Propose(v)
	if s.hub != nil {
		s.hub.Publish(events.ParamProposed, map[string]any{"param": p.ID, "value": v, "source": "bridge"})
	}
	s.mu.Lock()
	onEdit := s.onEdit
	s.mu.Unlock()
	if onEdit != nil {
		onEdit()
	}
	respondJSON(w, http.StatusOK, toResponse(p))
}

func (s *Server) handleMIDI(w http.ResponseWriter, r *http.Request) {
	if s.midi == nil {
		s.writeError(w, http.StatusServiceUnavailable, "midi unavailable")
		return
	}
	var req MIDIRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	raw, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(req.Data), " ", ""))
	if err != nil || len(raw) == 0 {
		s.writeError(w, http.StatusBadRequest, "data must be hex-encoded MIDI bytes")
		return
	}

	m, mapped, err := s.midi.HandleBytes(raw)
	if errors.Is(err, midi.ErrNotControlChange) {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, MIDIResponse{
		Mapped:     mapped,
		Param:      m.Param,
		Value:      m.Value,
		Queued:     m.Queued,
		Channel:    m.Channel,
		Controller: m.Controller,
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
