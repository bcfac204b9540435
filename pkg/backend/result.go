package backend

import (
	"errors"

	"github.com/thebtf/hcplog/pkg/models"
)

// ErrUnrecognizedResponse means a response carried neither a record nor a message.
var ErrUnrecognizedResponse = errors.New("response has neither a record nor a message")

// ChatResult is the decoded answer of the chat endpoint: a *RecordResult or a *QueryResult.
type ChatResult interface {
	isChatResult()
}

// RecordResult is a created or updated interaction.
// Created is decided by the explicit is_new flag when the backend sends one,
// otherwise by comparing the returned id with the id the request referred to.
type RecordResult struct {
	Message     string
	Suggestions []string
	Record      models.InteractionRecord
	Created     bool
}

// QueryResult is a natural-language answer with no record change.
type QueryResult struct {
	Message string
}

func (*RecordResult) isChatResult() {}
func (*QueryResult) isChatResult()  {}

// decodeRecord builds a RecordResult; sent is the id the request targeted (zero for a create).
func decodeRecord(env *envelope, sent models.LogID) (*RecordResult, bool) {
	data := env.record()
	if data == nil || env.LogID.IsZero() {
		return nil, false
	}
	created := sent.IsZero() || env.LogID != sent
	if env.IsNew != nil {
		created = *env.IsNew
	}
	return &RecordResult{
		Record:      data.toRecord(env.LogID),
		Created:     created,
		Suggestions: env.Suggestions,
		Message:     env.Message,
	}, true
}

// decodeChat discriminates a chat response on payload shape, once, at the boundary.
func decodeChat(env *envelope, sent models.LogID) (ChatResult, error) {
	if rec, ok := decodeRecord(env, sent); ok {
		return rec, nil
	}
	if env.AIMessage != nil {
		return &QueryResult{Message: *env.AIMessage}, nil
	}
	return nil, ErrUnrecognizedResponse
}
