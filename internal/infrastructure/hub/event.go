package hub

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType discriminates the closed set of event kinds pushed to clients.
type EventType string

const (
	// Control events emitted by the hub itself.
	EventConnection     EventType = "connection"
	EventHeartbeat      EventType = "heartbeat"
	EventServerShutdown EventType = "server_shutdown"

	// Domain events emitted by producers.
	EventMessageUpdate           EventType = "message_update"
	EventNewMessage              EventType = "new_message"
	EventDataSourceUpdate        EventType = "data_source_update"
	EventDocumentUpdate          EventType = "document_update"
	EventMemberRoleUpdated       EventType = "member_role_updated"
	EventMemberStatusUpdated     EventType = "member_status_updated"
	EventMemberRemoved           EventType = "member_removed"
	EventMemberDeletedPermanent  EventType = "member_deleted_permanent"
	EventMemberDeletedOwnAccount EventType = "member_deleted_own_account"
	EventIngestionRunUpdate      EventType = "ingestion_run_update"
	EventFeatureFlagUpdate       EventType = "feature_flag_update"
	EventDynamicWorkflow         EventType = "dynamic_workflow"
)

var knownEventTypes = map[EventType]struct{}{
	EventConnection:              {},
	EventHeartbeat:               {},
	EventServerShutdown:          {},
	EventMessageUpdate:           {},
	EventNewMessage:              {},
	EventDataSourceUpdate:        {},
	EventDocumentUpdate:          {},
	EventMemberRoleUpdated:       {},
	EventMemberStatusUpdated:     {},
	EventMemberRemoved:           {},
	EventMemberDeletedPermanent:  {},
	EventMemberDeletedOwnAccount: {},
	EventIngestionRunUpdate:      {},
	EventFeatureFlagUpdate:       {},
	EventDynamicWorkflow:         {},
}

// Valid reports whether t is one of the defined event kinds.
func (t EventType) Valid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// Event is one outbound message: a type discriminator plus a kind-specific
// payload. Events are value objects; they are serialized and written, never
// stored.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// Encode serializes the event into its wire frame:
//
//	data: {"type":...,"data":{...}}\n\n
func (e Event) Encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", e.Type, err)
	}

	frame := make([]byte, 0, len(body)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, body...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// ConnectionData is the payload of the initial registration confirmation.
type ConnectionData struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// HeartbeatData is the payload of the periodic liveness probe.
type HeartbeatData struct {
	Timestamp string `json:"timestamp"`
}

// ServerShutdownData is the payload of the terminal shutdown notice.
type ServerShutdownData struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// MessageUpdateData reports a lifecycle change of a previously submitted
// message.
type MessageUpdateData struct {
	MessageID       string `json:"messageId"`
	Status          string `json:"status"` // pending, processing, completed, failed
	ResponseContent string `json:"responseContent,omitempty"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
	ProcessedAt     string `json:"processedAt,omitempty"`
}

// NewMessageData carries a freshly created chat message.
type NewMessageData struct {
	MessageID       string                 `json:"messageId"`
	ConversationID  string                 `json:"conversationId"`
	Role            string                 `json:"role"` // user, assistant
	Message         string                 `json:"message"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	ResponseGroupID string                 `json:"response_group_id,omitempty"`
	UserID          string                 `json:"userId"`
	CreatedAt       string                 `json:"createdAt"`
}

// DataSourceUpdateData reports sync or verification progress of an external
// data-source connection.
type DataSourceUpdateData struct {
	ConnectionID          string      `json:"connection_id"`
	ConnectionType        string      `json:"connection_type,omitempty"`
	Status                string      `json:"status"` // idle, verifying, syncing, cancelled
	LastSyncStatus        string      `json:"last_sync_status,omitempty"`
	LastSyncAt            string      `json:"last_sync_at,omitempty"`
	LastSyncError         string      `json:"last_sync_error,omitempty"`
	DocumentsProcessed    *int        `json:"documents_processed,omitempty"`
	LastVerificationAt    string      `json:"last_verification_at,omitempty"`
	LastVerificationError string      `json:"last_verification_error,omitempty"`
	LatestOptions         interface{} `json:"latest_options,omitempty"`
	Timestamp             string      `json:"timestamp"`
}

// DocumentUpdateData reports the outcome of processing one uploaded document.
type DocumentUpdateData struct {
	BlobMetadataID    string `json:"blob_metadata_id"`
	Filename          string `json:"filename"`
	Status            string `json:"status"` // processed, failed
	ProcessedMarkdown string `json:"processed_markdown,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
	Timestamp         string `json:"timestamp"`
}

// MemberChangeData is the shared payload of the membership-change events.
type MemberChangeData struct {
	ActorUserID  string `json:"actorUserId"`
	TargetUserID string `json:"targetUserId"`
	Role         string `json:"role,omitempty"`
	Status       string `json:"status,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// IngestionRunUpdateData reports progress of a bulk ingestion run.
type IngestionRunUpdateData struct {
	IngestionRunID   string `json:"ingestion_run_id"`
	ConnectionID     string `json:"connection_id"`
	Status           string `json:"status"` // running, completed, failed
	RecordsProcessed *int   `json:"records_processed,omitempty"`
	RecordsFailed    *int   `json:"records_failed,omitempty"`
	TotalEstimated   *int   `json:"total_estimated,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
	Timestamp        string `json:"timestamp"`
}

// FeatureFlagUpdateData reports a feature-flag toggle.
type FeatureFlagUpdateData struct {
	FlagName         string `json:"flagName"`
	PlatformFlagName string `json:"platformFlagName"`
	Environment      string `json:"environment"`
	OrganizationID   string `json:"organizationId"`
	IsEnabled        bool   `json:"isEnabled"`
	Timestamp        string `json:"timestamp"`
}

// DynamicWorkflowData reports workflow creation, execution and progress.
type DynamicWorkflowData struct {
	Action        string      `json:"action"` // workflow_created, workflow_executed, progress_update
	Workflow      interface{} `json:"workflow,omitempty"`
	Mappings      interface{} `json:"mappings,omitempty"`
	Visualization interface{} `json:"visualization,omitempty"`
	Result        interface{} `json:"result,omitempty"`
	Progress      interface{} `json:"progress,omitempty"`
	Error         string      `json:"error,omitempty"`
	Timestamp     string      `json:"timestamp"`
}

// Timestamp formats t the way every event payload carries time.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// NewConnectionEvent confirms a successful registration to the client.
func NewConnectionEvent(now time.Time) Event {
	return Event{
		Type: EventConnection,
		Data: ConnectionData{Status: "connected", Timestamp: Timestamp(now)},
	}
}

// NewHeartbeatEvent is the periodic liveness probe.
func NewHeartbeatEvent(now time.Time) Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatData{Timestamp: Timestamp(now)},
	}
}

// NewServerShutdownEvent is the terminal notice sent while draining.
func NewServerShutdownEvent(message string, now time.Time) Event {
	return Event{
		Type: EventServerShutdown,
		Data: ServerShutdownData{Message: message, Timestamp: Timestamp(now)},
	}
}
