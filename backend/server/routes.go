package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/inkwell-app/inkwell/backend/journal"
	"github.com/inkwell-app/inkwell/backend/mood"
	contextKey "github.com/inkwell-app/inkwell/backend/server/context_key"
	storage "github.com/inkwell-app/inkwell/backend/storage/persistent"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (s *Server) registerRoutes(r *mux.Router) {
	r.HandleFunc("/mood-points", s.handleUpsertMood).Methods(http.MethodPost)
	r.HandleFunc("/mood-points", s.handleMoodRange).Methods(http.MethodGet)
	r.HandleFunc("/mood-points", s.handleDeleteMood).Methods(http.MethodDelete)
	r.HandleFunc("/mood-points/weekly-profile", s.handleWeeklyProfile).Methods(http.MethodGet)
	r.HandleFunc("/mood-points/recompute-day", s.handleRecomputeDay).Methods(http.MethodPost)

	r.HandleFunc("/streak", s.handleGetStreak).Methods(http.MethodGet)

	r.HandleFunc("/journals", s.handleCreateJournal).Methods(http.MethodPost)
	r.HandleFunc("/journals", s.handleListJournals).Methods(http.MethodGet)
	r.HandleFunc("/journals/{id}", s.handleGetJournal).Methods(http.MethodGet)
	r.HandleFunc("/journals/{id}", s.handleUpdateJournal).Methods(http.MethodPatch)
	r.HandleFunc("/journals/{id}", s.handleDeleteJournal).Methods(http.MethodDelete)

	r.HandleFunc("/journals/{id}/entries", s.handleCreateEntry).Methods(http.MethodPost)
	r.HandleFunc("/journals/{id}/entries", s.handleListEntries).Methods(http.MethodGet)
	r.HandleFunc("/entries/{id}", s.handleGetEntry).Methods(http.MethodGet)
	r.HandleFunc("/entries/{id}", s.handleUpdateEntry).Methods(http.MethodPatch)
	r.HandleFunc("/entries/{id}", s.handleDeleteEntry).Methods(http.MethodDelete)
}

// currentUser extracts the authenticated user's id from the request context.
func currentUser(r *http.Request) (primitive.ObjectID, bool) {
	raw, ok := r.Context().Value(contextKey.UserIDKey).(string)
	if !ok {
		return primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the service error kinds onto status codes: validation
// errors are 400, not-found conditions 404, ownership failures 403, and
// anything else a 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, mood.ErrInvalidScore),
		errors.Is(err, mood.ErrInvalidDay),
		errors.Is(err, journal.ErrInvalidRating):
		status = http.StatusBadRequest
	case errors.Is(err, mood.ErrNothingToDelete),
		errors.Is(err, journal.ErrJournalNotFound),
		errors.Is(err, journal.ErrEntryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, journal.ErrAccessDenied):
		status = http.StatusForbidden
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
}

func pathID(r *http.Request) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(mux.Vars(r)["id"])
}

func (s *Server) handleUpsertMood(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	var in mood.UpsertInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	point, err := s.Moods.Upsert(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, point)
}

func (s *Server) handleMoodRange(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	q := r.URL.Query()
	result, err := s.Moods.GetRange(r.Context(), userID, q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteMood(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	result, err := s.Moods.DeleteForDay(r.Context(), userID, r.URL.Query().Get("day"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleWeeklyProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	weeks, _ := strconv.Atoi(r.URL.Query().Get("weeks"))
	profile, err := s.Moods.WeeklyProfile(r.Context(), userID, weeks)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleRecomputeDay(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	var in struct {
		Day string `json:"day"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	point, err := s.Moods.RecomputeFromEntries(r.Context(), userID, in.Day)
	if err != nil {
		writeError(w, err)
		return
	}
	// A day with no rated entries recomputes to nothing.
	writeJSON(w, http.StatusOK, point)
}

func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	record, err := s.Streaks.Current(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleCreateJournal(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	var in struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	j, err := s.Journals.CreateJournal(r.Context(), userID, in.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (s *Server) handleListJournals(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	journals, err := s.Journals.GetJournals(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, journals)
}

func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}
	journalID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid journal id"})
		return
	}

	j, err := s.Journals.GetJournal(r.Context(), userID, journalID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleUpdateJournal(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}
	journalID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid journal id"})
		return
	}

	var in struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	j, err := s.Journals.UpdateJournal(r.Context(), userID, journalID, in.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleDeleteJournal(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}
	journalID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid journal id"})
		return
	}

	if err := s.Journals.DeleteJournal(r.Context(), userID, journalID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}
	journalID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid journal id"})
		return
	}

	var in journal.CreateEntryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	entry, err := s.Journals.CreateEntry(r.Context(), userID, journalID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}
	journalID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid journal id"})
		return
	}

	q := r.URL.Query()
	opts := storage.EntryListOptions{Kind: q.Get("kind")}
	if draft := q.Get("is_draft"); draft != "" {
		isDraft := draft == "true"
		opts.IsDraft = &isDraft
	}
	if limit, err := strconv.ParseInt(q.Get("limit"), 10, 64); err == nil {
		opts.Limit = limit
	}
	if offset, err := strconv.ParseInt(q.Get("offset"), 10, 64); err == nil {
		opts.Offset = offset
	}

	entries, err := s.Journals.GetEntries(r.Context(), userID, journalID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}
	entryID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid entry id"})
		return
	}

	entry, err := s.Journals.GetEntry(r.Context(), userID, entryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}
	entryID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid entry id"})
		return
	}

	var in journal.UpdateEntryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	entry, err := s.Journals.UpdateEntry(r.Context(), userID, entryID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		unauthorized(w)
		return
	}
	entryID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid entry id"})
		return
	}

	if err := s.Journals.DeleteEntry(r.Context(), userID, entryID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
