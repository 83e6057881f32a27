package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/TAO-07/no-one-answer/internal/records"
)

const maxRecordBodyBytes = 64 << 10

type recordPayload struct {
	Caller  string     `json:"caller"`
	Outcome string     `json:"outcome"`
	Note    string     `json:"note"`
	Tags    []string   `json:"tags"`
	CallAt  *time.Time `json:"call_at,omitempty"`
}

func (p recordPayload) record() records.Record {
	rec := records.Record{
		Caller:  p.Caller,
		Outcome: records.Outcome(p.Outcome),
		Note:    p.Note,
		Tags:    p.Tags,
	}
	if p.CallAt != nil {
		rec.CallAt = *p.CallAt
	}
	return rec
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}
	list, err := s.records.List(r.Context(), limit)
	if err != nil {
		s.respondRecordError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"records": list})
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}
	created, err := s.records.Create(r.Context(), payload.record())
	if err != nil {
		s.respondRecordError(w, err)
		return
	}
	s.debugf("record created id=%s outcome=%s", created.ID, created.Outcome)
	w.Header().Set("Location", "/api/records/"+created.ID.String())
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordID(w, r)
	if !ok {
		return
	}
	rec, err := s.records.Get(r.Context(), id)
	if err != nil {
		s.respondRecordError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordID(w, r)
	if !ok {
		return
	}
	payload, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}
	rec := payload.record()
	rec.ID = id
	updated, err := s.records.Update(r.Context(), rec)
	if err != nil {
		s.respondRecordError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordID(w, r)
	if !ok {
		return
	}
	if err := s.records.Delete(r.Context(), id); err != nil {
		s.respondRecordError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid record id %q", raw))
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) decodeRecord(w http.ResponseWriter, r *http.Request) (recordPayload, bool) {
	var payload recordPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid record body: %w", err))
		return recordPayload{}, false
	}
	return payload, true
}

func (s *Server) respondRecordError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, records.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err)
	case errors.Is(err, records.ErrInvalidRecord):
		s.respondError(w, http.StatusBadRequest, err)
	default:
		s.logger.Printf("record store error: %v", err)
		s.respondError(w, http.StatusInternalServerError, errors.New("record store unavailable"))
	}
}
