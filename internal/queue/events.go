package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types for the activity stream
const (
	EventLike    = "like"
	EventComment = "comment"
	EventFollow  = "follow"
	EventReport  = "report"
)

// Stream names
const (
	StreamActivity = "stream:activity"
)

// Consumer group name for notification workers
const (
	ConsumerGroupNotifications = "notification_workers"
)

// snippetRunes caps the comment excerpt carried on comment events.
const snippetRunes = 80

// ActivityEvent is a social action that may produce a notification.
// ID is generated once by the producer and survives redelivery, so consumers
// can use it to deduplicate.
type ActivityEvent struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	ActorID     string `json:"actor_id"`
	RecipientID string `json:"recipient_id"`
	TargetType  string `json:"target_type,omitempty"`
	TargetID    string `json:"target_id,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	Timestamp   int64  `json:"timestamp"` // Unix timestamp when event occurred
}

func newEvent(eventType, actorID, recipientID string) ActivityEvent {
	return ActivityEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		ActorID:     actorID,
		RecipientID: recipientID,
		Timestamp:   time.Now().Unix(),
	}
}

// NewFollowEvent creates an event for when followerID starts following followeeID.
func NewFollowEvent(followerID, followeeID string) ActivityEvent {
	e := newEvent(EventFollow, followerID, followeeID)
	e.TargetType = "user"
	e.TargetID = followerID
	return e
}

// NewLikeEvent creates an event for a like on a work or question owned by authorID.
func NewLikeEvent(actorID, authorID, targetType, targetID string) ActivityEvent {
	e := newEvent(EventLike, actorID, authorID)
	e.TargetType = targetType
	e.TargetID = targetID
	return e
}

// NewCommentEvent creates an event for a comment. The snippet is the first
// 80 runes of the comment body.
func NewCommentEvent(actorID, authorID, targetType, targetID, body string) ActivityEvent {
	e := newEvent(EventComment, actorID, authorID)
	e.TargetType = targetType
	e.TargetID = targetID
	e.Snippet = Snippet(body)
	return e
}

// NewReportEvent creates an event telling adminID about a report.
func NewReportEvent(reporterID, adminID, targetType, targetID, reason string) ActivityEvent {
	e := newEvent(EventReport, reporterID, adminID)
	e.TargetType = targetType
	e.TargetID = targetID
	e.Snippet = Snippet(reason)
	return e
}

// Snippet truncates s to at most 80 runes.
func Snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetRunes {
		return s
	}
	return string(r[:snippetRunes])
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e ActivityEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseActivityEvent parses an ActivityEvent from Redis stream message values.
func ParseActivityEvent(values map[string]interface{}) (ActivityEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return ActivityEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event ActivityEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return ActivityEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.ID == "" {
		return ActivityEvent{}, fmt.Errorf("event has no id")
	}
	return event, nil
}
