package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/logger"

	"github.com/thebtf/hcplog/internal/devbackend/extract"
	"github.com/thebtf/hcplog/internal/devbackend/store"
	"github.com/thebtf/hcplog/pkg/backend"
	"github.com/thebtf/hcplog/pkg/models"
)

const evansNote = "Met with Dr. Evans, positive, discussed trial data"

// ServiceSuite exercises the HTTP handlers against a temporary database.
type ServiceSuite struct {
	suite.Suite
	store *store.Store
	svc   *Service
}

func (s *ServiceSuite) SetupTest() {
	st, err := store.NewStore(store.Config{
		Path:     filepath.Join(s.T().TempDir(), "dev.db"),
		LogLevel: logger.Silent,
	})
	s.Require().NoError(err)
	s.store = st
	s.svc = New(st, nil)
}

func (s *ServiceSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.svc.ServeHTTP(rec, req)
	return rec
}

func (s *ServiceSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *ServiceSuite) logEvans() int64 {
	rec := s.do(http.MethodPost, "/api/v1/log_interaction", map[string]any{"text": evansNote, "user_id": 1})
	s.Require().Equal(http.StatusOK, rec.Code)
	return int64(s.decode(rec)["log_id"].(float64))
}

// TestHealth tests both health routes.
func (s *ServiceSuite) TestHealth() {
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := s.do(http.MethodGet, path, nil)
		s.Equal(http.StatusOK, rec.Code, path)
		s.Equal("ok", s.decode(rec)["status"])
	}
}

// TestRequestID tests the caller's id is echoed and a missing one is assigned.
func (s *ServiceSuite) TestRequestID() {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.svc.ServeHTTP(rec, req)
	s.Equal("abc-123", rec.Header().Get(requestIDHeader))

	rec = s.do(http.MethodGet, "/health", nil)
	s.Len(rec.Header().Get(requestIDHeader), 36)
}

// TestLogInteraction tests extraction and storage of a new interaction.
func (s *ServiceSuite) TestLogInteraction() {
	rec := s.do(http.MethodPost, "/api/v1/log_interaction", map[string]any{"text": evansNote, "user_id": 1})
	s.Require().Equal(http.StatusOK, rec.Code)

	body := s.decode(rec)
	s.Equal("Interaction logged successfully!", body["message"])
	s.EqualValues(1, body["log_id"])

	data := body["data_sent_to_db"].(map[string]any)
	s.Equal("Dr. Evans", data["hcp_name"])
	s.Equal("Positive", data["sentiment"])
	s.Equal("trial data", data["topics_discussed"])
	s.Nil(data["outcomes"])

	stored, err := s.store.Get(context.Background(), 1)
	s.Require().NoError(err)
	s.Equal(evansNote, stored.RawText)
	s.Equal(store.NA, stored.Outcomes)
}

// TestFillFormSuggestions tests the fill endpoint adds follow-up suggestions.
func (s *ServiceSuite) TestFillFormSuggestions() {
	rec := s.do(http.MethodPost, "/api/v1/fill_form_with_ai", map[string]any{"text": evansNote, "user_id": 1})
	s.Require().Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.NotEmpty(body["suggested_follow_ups"])
	s.NotNil(body["data_sent_to_db"])
}

// TestValidation_TableDriven tests malformed requests are answered with 422 detail lists.
func (s *ServiceSuite) TestValidation_TableDriven() {
	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"empty text", http.MethodPost, "/api/v1/log_interaction", map[string]any{"text": "  "}},
		{"missing text", http.MethodPost, "/api/v1/chat", map[string]any{"user_id": 1}},
		{"bad json", http.MethodPost, "/api/v1/chat_with_ai", "not an object"},
		{"bad id", http.MethodPut, "/api/v1/update_interaction/abc", map[string]any{}},
		{"zero id", http.MethodPut, "/api/v1/update_interaction/0", map[string]any{}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.do(tt.method, tt.path, tt.body)
			s.Equal(http.StatusUnprocessableEntity, rec.Code)
			detail, ok := s.decode(rec)["detail"].([]any)
			s.Require().True(ok)
			s.NotEmpty(detail[0].(map[string]any)["msg"])
		})
	}
}

// TestUpdateInteraction tests overwriting fields and the missing-id error.
func (s *ServiceSuite) TestUpdateInteraction() {
	id := s.logEvans()

	rec := s.do(http.MethodPut, "/api/v1/update_interaction/1", map[string]any{
		"hcp_name":  "Dr. Evans",
		"sentiment": "Negative",
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("Interaction 1 updated successfully!", s.decode(rec)["message"])

	stored, err := s.store.Get(context.Background(), id)
	s.Require().NoError(err)
	s.Equal("Negative", stored.Sentiment)
	s.Equal(store.NA, stored.TopicsDiscussed)

	rec = s.do(http.MethodPut, "/api/v1/update_interaction/99", map[string]any{"hcp_name": "x"})
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("No interaction found with log_id: 99", s.decode(rec)["detail"])
}

// TestSaveManual tests create when the id is unknown and update when it exists.
func (s *ServiceSuite) TestSaveManual() {
	rec := s.do(http.MethodPost, "/api/v1/save_manual", map[string]any{
		"log_id":   nil,
		"user_id":  1,
		"hcp_name": "Dr. Smith",
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal(true, body["is_new"])
	s.EqualValues(1, body["log_id"])

	rec = s.do(http.MethodPost, "/api/v1/save_manual", map[string]any{
		"log_id":    1,
		"user_id":   1,
		"hcp_name":  "Dr. Smith",
		"sentiment": "Positive",
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	body = s.decode(rec)
	s.Equal(false, body["is_new"])
	s.EqualValues(1, body["log_id"])

	rec = s.do(http.MethodPost, "/api/v1/save_manual", map[string]any{"log_id": "42", "hcp_name": "Dr. Lee"})
	s.Require().Equal(http.StatusOK, rec.Code)
	body = s.decode(rec)
	s.Equal(true, body["is_new"])
	s.EqualValues(2, body["log_id"])
}

// TestChatRoutes tests the chat endpoint creates, edits and answers.
func (s *ServiceSuite) TestChatRoutes() {
	rec := s.do(http.MethodPost, "/api/v1/chat", map[string]any{"text": evansNote, "current_log_id": nil})
	s.Require().Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal(true, body["is_new"])
	s.EqualValues(1, body["log_id"])

	rec = s.do(http.MethodPost, "/api/v1/chat", map[string]any{"text": "Change the sentiment to Negative", "current_log_id": 1})
	s.Require().Equal(http.StatusOK, rec.Code)
	body = s.decode(rec)
	s.Equal(false, body["is_new"])
	data := body["data_sent_to_db"].(map[string]any)
	s.Equal("Negative", data["sentiment"])
	s.Equal("Dr. Evans", data["hcp_name"])

	rec = s.do(http.MethodPost, "/api/v1/chat", map[string]any{"text": "Who did I meet last?"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("Dr. Evans", s.decode(rec)["ai_message"])

	rec = s.do(http.MethodPost, "/api/v1/chat", map[string]any{"text": "Change the sentiment to Negative"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(s.decode(rec)["ai_message"], "Select or log an interaction first")
}

// TestChatEditOverlay tests an edit without a "field to value" phrase overlays extracted fields.
func (s *ServiceSuite) TestChatEditOverlay() {
	s.logEvans()
	rec := s.do(http.MethodPost, "/api/v1/chat", map[string]any{
		"text":           "Correct it: she was skeptical and we shared the dosing guide",
		"current_log_id": "1",
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	data := s.decode(rec)["data_sent_to_db"].(map[string]any)
	s.Equal("Negative", data["sentiment"])
	s.Equal("dosing guide", data["materials_shared"])
	s.Equal("Meeting", data["interaction_type"])
	s.Equal("trial data", data["topics_discussed"])
}

// TestChatWithAI tests the question answers.
func (s *ServiceSuite) TestChatWithAI() {
	ask := func(q string) string {
		rec := s.do(http.MethodPost, "/api/v1/chat_with_ai", map[string]any{"text": q, "user_id": 1})
		s.Require().Equal(http.StatusOK, rec.Code)
		return s.decode(rec)["ai_message"].(string)
	}

	s.Equal("You haven't logged any interactions yet.", ask("Who did I meet?"))
	s.logEvans()
	s.Equal("Dr. Evans", ask("Who did I meet?"))
	s.Equal("You have logged 1 interaction.", ask("How many interactions did I log?"))
	s.Equal("Last interaction with Dr. Evans (Meeting): discussed trial data. Sentiment was Positive.", ask("What about Dr. Evans?"))
	s.Equal("I couldn't find any interactions with Dr. Jones.", ask("What about Dr. Jones?"))
	s.Equal("Last interaction with Dr. Evans (Meeting): discussed trial data. Sentiment was Positive.", ask("What did we discuss about trial data?"))
	s.Equal("I couldn't find an answer to that.", ask("Tell me a joke"))
}

// TestListAndGet tests the read endpoints.
func (s *ServiceSuite) TestListAndGet() {
	s.logEvans()
	s.logEvans()

	rec := s.do(http.MethodGet, "/api/v1/interactions?limit=1", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var list []store.Interaction
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	s.Require().Len(list, 1)
	s.EqualValues(2, list[0].LogID)

	rec = s.do(http.MethodGet, "/api/v1/interactions/1", nil)
	s.Equal(http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/v1/interactions/7", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

// TestClientRoundTrip drives the service through the real client.
func TestClientRoundTrip(t *testing.T) {
	st, err := store.NewStore(store.Config{
		Path:     filepath.Join(t.TempDir(), "dev.db"),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	defer st.Close()

	ts := httptest.NewServer(New(st, extract.New(nil)))
	defer ts.Close()

	ctx := context.Background()
	c := backend.NewClient(ts.URL + APIPrefix)
	require.NoError(t, c.Health(ctx))

	created, err := c.LogInteraction(ctx, evansNote)
	require.NoError(t, err)
	assert.True(t, created.Created)
	assert.Equal(t, models.LogID("1"), created.Record.LogID)
	assert.Equal(t, "Dr. Evans", created.Record.HCPName)
	assert.Equal(t, models.SentimentPositive, created.Record.Sentiment)

	res, err := c.Chat(ctx, "Change the sentiment to Negative", created.Record.LogID)
	require.NoError(t, err)
	edited, ok := res.(*backend.RecordResult)
	require.True(t, ok)
	assert.False(t, edited.Created)
	assert.Equal(t, models.SentimentNegative, edited.Record.Sentiment)

	res, err = c.Chat(ctx, "Who did I meet?", "")
	require.NoError(t, err)
	answer, ok := res.(*backend.QueryResult)
	require.True(t, ok)
	assert.Equal(t, "Dr. Evans", answer.Message)

	rec := edited.Record
	rec.Outcomes = "Agreed to a pilot"
	saved, err := c.SaveManual(ctx, rec)
	require.NoError(t, err)
	assert.False(t, saved.Created)
	assert.Equal(t, "Agreed to a pilot", saved.Record.Outcomes)

	missing := rec
	missing.LogID = "99"
	_, err = c.UpdateInteraction(ctx, missing)
	var be *backend.BoundaryError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusNotFound, be.StatusCode)
	assert.Equal(t, "No interaction found with log_id: 99", be.Message("fallback"))
}
