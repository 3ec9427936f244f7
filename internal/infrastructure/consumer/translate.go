package consumer

import (
	"encoding/json"
	"fmt"
	"time"

	"go-event-hub/internal/infrastructure/hub"
)

// Route is the recipient of a translated event. An empty UserID means
// organization-wide fanout.
type Route struct {
	OrgID  string
	UserID string
}

// envelope covers the three platform message families. Assistant messages
// carry no type discriminator; status messages do.
type envelope struct {
	Type     string `json:"type"`
	TenantID string `json:"tenant_id"`

	// Assistant message fields.
	MessageID       string                 `json:"message_id"`
	ConversationID  string                 `json:"conversation_id"`
	Response        string                 `json:"response"`
	Metadata        map[string]interface{} `json:"metadata"`
	ResponseGroupID string                 `json:"response_group_id"`

	// Data-source sync/verification fields.
	ConnectionID       string      `json:"connection_id"`
	Status             string      `json:"status"`
	ErrorMessage       string      `json:"error_message"`
	DocumentsProcessed *int        `json:"documents_processed"`
	Options            interface{} `json:"options"`
	Error              string      `json:"error"`

	// Document processing fields.
	BlobMetadataID    string `json:"blob_metadata_id"`
	UserID            string `json:"user_id"`
	ProcessedMarkdown string `json:"processed_markdown"`

	Timestamp string `json:"timestamp"`
}

// Translate turns one queue message into a hub event and its route.
func Translate(body []byte) (hub.Event, Route, error) {
	var msg envelope
	if err := json.Unmarshal(body, &msg); err != nil {
		return hub.Event{}, Route{}, fmt.Errorf("invalid message body: %w", err)
	}
	if msg.TenantID == "" {
		return hub.Event{}, Route{}, fmt.Errorf("message has no tenant_id")
	}

	switch msg.Type {
	case "sync":
		return translateSync(msg)
	case "verification":
		return translateVerification(msg)
	case "document_processing":
		return translateDocument(msg)
	case "":
		if msg.MessageID != "" {
			return translateAssistantMessage(msg)
		}
		return hub.Event{}, Route{}, fmt.Errorf("untyped message without message_id")
	default:
		return hub.Event{}, Route{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func translateAssistantMessage(msg envelope) (hub.Event, Route, error) {
	if msg.ConversationID == "" {
		return hub.Event{}, Route{}, fmt.Errorf("assistant message %s has no conversation_id", msg.MessageID)
	}

	ev := hub.Event{Type: hub.EventNewMessage, Data: hub.NewMessageData{
		MessageID:       msg.MessageID,
		ConversationID:  msg.ConversationID,
		Role:            "assistant",
		Message:         msg.Response,
		Metadata:        msg.Metadata,
		ResponseGroupID: msg.ResponseGroupID,
		CreatedAt:       stamp(msg.Timestamp),
	}}
	return ev, Route{OrgID: msg.TenantID}, nil
}

func translateSync(msg envelope) (hub.Event, Route, error) {
	if msg.ConnectionID == "" {
		return hub.Event{}, Route{}, fmt.Errorf("sync message has no connection_id")
	}

	data := hub.DataSourceUpdateData{
		ConnectionID: msg.ConnectionID,
		Timestamp:    stamp(msg.Timestamp),
	}

	switch msg.Status {
	case "sync_started":
		data.Status = "syncing"
	case "sync_completed":
		data.Status = "idle"
		data.LastSyncStatus = "success"
		data.LastSyncAt = data.Timestamp
		data.DocumentsProcessed = msg.DocumentsProcessed
	case "sync_failed":
		data.Status = "idle"
		data.LastSyncStatus = "failed"
		data.LastSyncError = msg.ErrorMessage
	case "sync_cancelled":
		data.Status = "cancelled"
	default:
		return hub.Event{}, Route{}, fmt.Errorf("unknown sync status %q", msg.Status)
	}

	return hub.Event{Type: hub.EventDataSourceUpdate, Data: data}, Route{OrgID: msg.TenantID}, nil
}

func translateVerification(msg envelope) (hub.Event, Route, error) {
	if msg.ConnectionID == "" {
		return hub.Event{}, Route{}, fmt.Errorf("verification message has no connection_id")
	}

	now := stamp(msg.Timestamp)
	data := hub.DataSourceUpdateData{
		ConnectionID:       msg.ConnectionID,
		Status:             "idle",
		LastVerificationAt: now,
		Timestamp:          now,
	}

	switch msg.Status {
	case "success":
		data.LatestOptions = msg.Options
	case "failed":
		data.LastVerificationError = msg.Error
	default:
		return hub.Event{}, Route{}, fmt.Errorf("unknown verification status %q", msg.Status)
	}

	return hub.Event{Type: hub.EventDataSourceUpdate, Data: data}, Route{OrgID: msg.TenantID}, nil
}

func translateDocument(msg envelope) (hub.Event, Route, error) {
	if msg.BlobMetadataID == "" {
		return hub.Event{}, Route{}, fmt.Errorf("document message has no blob_metadata_id")
	}

	data := hub.DocumentUpdateData{
		BlobMetadataID:    msg.BlobMetadataID,
		ProcessedMarkdown: msg.ProcessedMarkdown,
		ErrorMessage:      msg.ErrorMessage,
		Timestamp:         stamp(msg.Timestamp),
	}

	switch msg.Status {
	case "processing_completed":
		data.Status = "processed"
	case "processing_failed":
		data.Status = "failed"
	default:
		return hub.Event{}, Route{}, fmt.Errorf("unknown document status %q", msg.Status)
	}

	// A user-scoped document update goes to its uploader only; otherwise the
	// whole tenant sees it.
	return hub.Event{Type: hub.EventDocumentUpdate, Data: data},
		Route{OrgID: msg.TenantID, UserID: msg.UserID}, nil
}

func stamp(ts string) string {
	if ts == "" {
		return hub.Timestamp(time.Now())
	}
	if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
		return hub.Timestamp(parsed)
	}
	return ts
}
