package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrEmptyText = errors.New("report request has no text")

// ReportRequest asks the worker to answer one free-text question. ReplyTo
// names the queue the reply goes to; when empty the AMQP reply-to property
// or the configured reply queue is used.
type ReportRequest struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReportRequest(text, replyTo string) *ReportRequest {
	return &ReportRequest{
		ID:        uuid.NewString(),
		Text:      text,
		ReplyTo:   replyTo,
		Timestamp: time.Now(),
	}
}

func (m *ReportRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRequestFromJSON decodes a request. A request without text is
// rejected; a missing id is filled in.
func ReportRequestFromJSON(data []byte) (*ReportRequest, error) {
	msg, err := decodeRequest(data)
	if err != nil {
		return nil, err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return msg, nil
}

func decodeRequest(data []byte) (*ReportRequest, error) {
	var msg ReportRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.Text) == "" {
		return nil, ErrEmptyText
	}
	return &msg, nil
}

// ReportReply carries the outcome of one request. Payload is the JSON
// answer as the HTTP query endpoint returns it.
type ReportReply struct {
	ID        string          `json:"id"`
	RequestID string          `json:"request_id"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewReportReply(requestID, status string, payload json.RawMessage) *ReportReply {
	return &ReportReply{
		ID:        uuid.NewString(),
		RequestID: requestID,
		Status:    status,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

func (m *ReportReply) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportReplyFromJSON(data []byte) (*ReportReply, error) {
	var msg ReportReply
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
