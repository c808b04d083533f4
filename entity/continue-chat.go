package entity

// ContinueChatRequest is one call to the flow continuation engine. A nil
// Message means no user reply.
type ContinueChatRequest struct {
	Message                     *string       `json:"message,omitempty"`
	Version                     string        `json:"version"`
	State                       *SessionState `json:"state"`
	StartTime                   int64         `json:"startTime,omitempty"`
	MultipleWhatsappIntegration bool          `json:"multipleWhatsappIntegration,omitempty"`
}

type ContinueChatResponse struct {
	Messages          []Message          `json:"messages"`
	Input             *Input             `json:"input,omitempty"`
	ClientSideActions []ClientSideAction `json:"clientSideActions,omitempty"`
	NewSessionState   *SessionState      `json:"newSessionState"`
	VisitedEdges      []VisitedEdge      `json:"visitedEdges,omitempty"`
	Logs              []ChatLog          `json:"logs,omitempty"`
}

type VisitedEdge struct {
	ResultID string `json:"resultId,omitempty" bson:"result_id,omitempty"`
	EdgeID   string `json:"edgeId" bson:"edge_id"`
	Index    int    `json:"index" bson:"index"`
}

type ChatLog struct {
	Status      string `json:"status" bson:"status"`
	Description string `json:"description" bson:"description"`
	Details     string `json:"details,omitempty" bson:"details,omitempty"`
}

// Reply wraps a user reply for ContinueChatRequest.Message.
func Reply(text string) *string {
	return &text
}
