package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/hcplog/internal/devbackend/extract"
	"github.com/thebtf/hcplog/internal/devbackend/store"
	"github.com/thebtf/hcplog/pkg/models"
	"github.com/thebtf/hcplog/pkg/similarity"
)

const (
	maxRequestBody = 1 << 20

	defaultListLimit = 50
	maxListLimit     = 500

	// Questions are matched against this many recent interactions.
	searchWindow        = 200
	topicMatchThreshold = 0.5

	duplicateWindow    = 20
	duplicateThreshold = 0.9
)

// Request bodies.
type (
	textRequest struct {
		Text   string `json:"text"`
		UserID int64  `json:"user_id"`
	}

	chatRequest struct {
		Text         string       `json:"text"`
		CurrentLogID models.LogID `json:"current_log_id"`
		UserID       int64        `json:"user_id"`
	}

	saveManualRequest struct {
		extract.Fields
		LogID  models.LogID `json:"log_id"`
		UserID int64        `json:"user_id"`
	}
)

// recordResponse is returned by every endpoint that creates or changes an interaction.
type recordResponse struct {
	Data        extract.Fields `json:"data_sent_to_db"`
	IsNew       *bool          `json:"is_new,omitempty"`
	Message     string         `json:"message"`
	Suggestions []string       `json:"suggested_follow_ups,omitempty"`
	LogID       int64          `json:"log_id"`
}

type aiMessageResponse struct {
	AIMessage string `json:"ai_message"`
}

// validationIssue mirrors one entry of a 422 detail list.
type validationIssue struct {
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
	Loc  []string `json:"loc"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	}
	if err := s.store.Ping(); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
		body["error"] = err.Error()
	}
	writeJSON(w, status, body)
}

func (s *Service) handleLogInteraction(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeBody(w, r, &req) || !requireText(w, req.Text) {
		return
	}
	resp, err := s.createFromText(r, req.UserID, req.Text)
	if err != nil {
		writeServerError(w, "log interaction", err)
		return
	}
	resp.Message = "Interaction logged successfully!"
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleFillForm(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeBody(w, r, &req) || !requireText(w, req.Text) {
		return
	}
	resp, err := s.createFromText(r, req.UserID, req.Text)
	if err != nil {
		writeServerError(w, "fill form", err)
		return
	}
	resp.Message = "Form filled from your notes."
	resp.Suggestions = s.extractor.Lexicon().Suggestions()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleUpdateInteraction(w http.ResponseWriter, r *http.Request) {
	logID, ok := pathLogID(w, r)
	if !ok {
		return
	}
	var fields extract.Fields
	if !decodeBody(w, r, &fields) {
		return
	}
	clean := store.Sanitize(fields)
	if err := s.store.Update(r.Context(), logID, clean); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, fmt.Sprintf("No interaction found with log_id: %d", logID))
			return
		}
		writeServerError(w, "update interaction", err)
		return
	}
	log.Info().Int64("logId", logID).Msg("Interaction updated")
	writeJSON(w, http.StatusOK, recordResponse{
		Message: fmt.Sprintf("Interaction %d updated successfully!", logID),
		LogID:   logID,
		Data:    clean.Extracted(),
	})
}

func (s *Service) handleSaveManual(w http.ResponseWriter, r *http.Request) {
	var req saveManualRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	clean := store.Sanitize(req.Fields)

	if id, ok := parseLogID(req.LogID); ok {
		err := s.store.Update(ctx, id, clean)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, recordResponse{
				Message: fmt.Sprintf("Interaction %d updated successfully!", id),
				LogID:   id,
				Data:    clean.Extracted(),
				IsNew:   boolPtr(false),
			})
			return
		case !errors.Is(err, store.ErrNotFound):
			writeServerError(w, "save manual", err)
			return
		}
	}

	id, err := s.store.Create(ctx, req.UserID, "", clean)
	if err != nil {
		writeServerError(w, "save manual", err)
		return
	}
	log.Info().Int64("logId", id).Msg("Manual interaction saved")
	writeJSON(w, http.StatusOK, recordResponse{
		Message: "Interaction saved successfully!",
		LogID:   id,
		Data:    clean.Extracted(),
		IsNew:   boolPtr(true),
	})
}

func (s *Service) handleChatWithAI(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeBody(w, r, &req) || !requireText(w, req.Text) {
		return
	}
	answer, err := s.answer(r, req.UserID, req.Text)
	if err != nil {
		writeServerError(w, "chat with ai", err)
		return
	}
	writeJSON(w, http.StatusOK, aiMessageResponse{AIMessage: answer})
}

// handleChat routes free text to an edit of the current interaction, an answer, or a new interaction.
func (s *Service) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) || !requireText(w, req.Text) {
		return
	}
	lex := s.extractor.Lexicon()

	switch {
	case lex.IsEdit(req.Text):
		current, ok := parseLogID(req.CurrentLogID)
		if !ok {
			writeJSON(w, http.StatusOK, aiMessageResponse{
				AIMessage: "Select or log an interaction first, then tell me what to change.",
			})
			return
		}
		s.editFromText(w, r, current, req.Text)

	case lex.IsQuestion(req.Text):
		answer, err := s.answer(r, req.UserID, req.Text)
		if err != nil {
			writeServerError(w, "chat", err)
			return
		}
		writeJSON(w, http.StatusOK, aiMessageResponse{AIMessage: answer})

	default:
		resp, err := s.createFromText(r, req.UserID, req.Text)
		if err != nil {
			writeServerError(w, "chat", err)
			return
		}
		resp.Message = "Interaction logged successfully!"
		resp.IsNew = boolPtr(true)
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Service) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}
	userID := int64(queryInt(r, "user_id", 0))

	list, err := s.store.List(r.Context(), userID, limit)
	if err != nil {
		writeServerError(w, "list interactions", err)
		return
	}
	if list == nil {
		list = []store.Interaction{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Service) handleGetInteraction(w http.ResponseWriter, r *http.Request) {
	logID, ok := pathLogID(w, r)
	if !ok {
		return
	}
	it, err := s.store.Get(r.Context(), logID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, fmt.Sprintf("No interaction found with log_id: %d", logID))
			return
		}
		writeServerError(w, "get interaction", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// createFromText extracts fields from text and stores them as a new interaction.
func (s *Service) createFromText(r *http.Request, userID int64, text string) (recordResponse, error) {
	s.warnIfDuplicate(r, userID, text)
	fields := s.extractor.Extract(text)
	clean := store.Sanitize(fields)
	id, err := s.store.Create(r.Context(), userID, text, clean)
	if err != nil {
		return recordResponse{}, err
	}
	log.Info().
		Int64("logId", id).
		Int("fieldsFound", fields.Found()).
		Msg("Interaction logged")
	return recordResponse{LogID: id, Data: clean.Extracted()}, nil
}

// editFromText applies an edit request to the stored interaction logID.
// A single "field to value" edit is preferred; otherwise every field found in the text overwrites the stored one.
func (s *Service) editFromText(w http.ResponseWriter, r *http.Request, logID int64, text string) {
	ctx := r.Context()
	existing, err := s.store.Get(ctx, logID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, fmt.Sprintf("No interaction found with log_id: %d", logID))
			return
		}
		writeServerError(w, "chat edit", err)
		return
	}

	fields := existing.Fields.Extracted()
	if edit, ok := s.extractor.ParseEdit(text); ok {
		fields.Set(edit.Field, edit.Value)
	} else {
		found := s.extractor.Extract(text)
		if _, matched := s.extractor.Lexicon().InteractionType(text); !matched {
			found.InteractionType = nil
		}
		if found.Found() == 0 {
			writeJSON(w, http.StatusOK, aiMessageResponse{
				AIMessage: `I couldn't tell what to change. Try "Change the sentiment to Positive".`,
			})
			return
		}
		fields.Overlay(found)
	}

	clean := store.Sanitize(fields)
	if err := s.store.Update(ctx, logID, clean); err != nil {
		writeServerError(w, "chat edit", err)
		return
	}
	log.Info().Int64("logId", logID).Msg("Interaction edited from chat")
	writeJSON(w, http.StatusOK, recordResponse{
		Message: fmt.Sprintf("Interaction %d updated successfully!", logID),
		LogID:   logID,
		Data:    clean.Extracted(),
		IsNew:   boolPtr(false),
	})
}

// answer produces a short reply to a question about logged interactions.
func (s *Service) answer(r *http.Request, userID int64, question string) (string, error) {
	ctx := r.Context()
	q := strings.ToLower(question)

	switch {
	case strings.Contains(q, "how many"):
		n, err := s.store.Count(ctx, userID)
		if err != nil {
			return "", err
		}
		if n == 1 {
			return "You have logged 1 interaction.", nil
		}
		return fmt.Sprintf("You have logged %d interactions.", n), nil

	case strings.HasPrefix(strings.TrimSpace(q), "who"):
		latest, err := s.store.Latest(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return "You haven't logged any interactions yet.", nil
		}
		if err != nil {
			return "", err
		}
		if latest.HCPName == "" || latest.HCPName == store.NA {
			return "Your last interaction has no HCP name recorded.", nil
		}
		return latest.HCPName, nil
	}

	if name, ok := extract.HCPName(question); ok {
		matches, err := s.store.FindByHCP(ctx, userID, name)
		if err != nil {
			return "", err
		}
		if len(matches) == 0 {
			return fmt.Sprintf("I couldn't find any interactions with %s.", name), nil
		}
		return summarize(matches[0]), nil
	}

	recent, err := s.store.List(ctx, userID, searchWindow)
	if err != nil {
		return "", err
	}
	if it, score, ok := similarity.Best(question, recent, searchText, topicMatchThreshold); ok {
		log.Debug().Int64("logId", it.LogID).Float64("score", score).Msg("Question matched interaction")
		return summarize(it), nil
	}
	return "I couldn't find an answer to that.", nil
}

// searchText is what a topic question is matched against.
func searchText(it store.Interaction) string {
	return strings.Join([]string{
		it.RawText, it.TopicsDiscussed, it.Outcomes, it.FollowUpActions,
		it.MaterialsShared, it.SamplesDistributed,
	}, " ")
}

// warnIfDuplicate logs when text closely repeats a recent note of the same user.
func (s *Service) warnIfDuplicate(r *http.Request, userID int64, text string) {
	recent, err := s.store.List(r.Context(), userID, duplicateWindow)
	if err != nil {
		return
	}
	notes := make([]string, 0, len(recent))
	for _, it := range recent {
		if it.RawText != "" {
			notes = append(notes, it.RawText)
		}
	}
	if similarity.IsSimilarToAny(text, notes, duplicateThreshold) {
		log.Warn().Int64("userId", userID).Msg("Interaction looks like a repeat of a recent note")
	}
}

func summarize(it store.Interaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Last interaction with %s", it.HCPName)
	if it.InteractionType != store.NA {
		fmt.Fprintf(&b, " (%s)", it.InteractionType)
	}
	if it.TopicsDiscussed != store.NA {
		fmt.Fprintf(&b, ": discussed %s", it.TopicsDiscussed)
	}
	if it.Sentiment != store.NA {
		fmt.Fprintf(&b, ". Sentiment was %s", it.Sentiment)
	}
	b.WriteString(".")
	return b.String()
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeValidation(w, "body", "Could not read request body")
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		writeValidation(w, "body", "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func requireText(w http.ResponseWriter, text string) bool {
	if strings.TrimSpace(text) == "" {
		writeValidation(w, "text", "Field required")
		return false
	}
	return true
}

func pathLogID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "logID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeValidation(w, "log_id", "Input should be a valid integer")
		return 0, false
	}
	return id, true
}

func parseLogID(id models.LogID) (int64, bool) {
	if id.IsZero() {
		return 0, false
	}
	n, err := strconv.ParseInt(id.String(), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func boolPtr(b bool) *bool {
	return &b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeValidation(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]validationIssue{
		"detail": {{Loc: []string{"body", field}, Msg: msg, Type: "value_error"}},
	})
}

func writeServerError(w http.ResponseWriter, op string, err error) {
	log.Error().Err(err).Str("op", op).Msg("Request failed")
	writeDetail(w, http.StatusInternalServerError, "Internal error while trying to "+op)
}
