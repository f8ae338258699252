package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the availability state of one menu item.
type Status string

const (
	// StatusUnavailable marks an item as 86'd (out of stock).
	StatusUnavailable Status = "unavailable"
	// StatusAvailable marks an item as restored.
	StatusAvailable Status = "available"
)

// Valid reports whether s is one of the defined variants.
func (s Status) Valid() bool {
	return s == StatusUnavailable || s == StatusAvailable
}

// ParseStatus maps a status or legacy action string to a Status.
// "86" and "add" mean unavailable; "restore" and "remove" mean available.
func ParseStatus(v string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "unavailable", "86", "add":
		return StatusUnavailable, nil
	case "available", "restore", "remove":
		return StatusAvailable, nil
	default:
		return "", fmt.Errorf("unknown status %q", v)
	}
}

// Update is one availability change submitted by a staff member.
type Update struct {
	ItemKey string `json:"item_key"`
	Status  Status `json:"status"`
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`
}

// updateWire accepts both the canonical field names and the legacy
// item_name/action/user_id names still sent by older station clients.
type updateWire struct {
	ItemKey  string `json:"item_key"`
	ItemName string `json:"item_name"`
	Status   string `json:"status"`
	Action   string `json:"action"`
	ActorID  string `json:"actor_id"`
	UserID   string `json:"user_id"`
	Reason   string `json:"reason"`
}

// UnmarshalJSON decodes an Update, resolving legacy field aliases.
// An unrecognised status string is kept verbatim so that validation can
// report it instead of the decoder.
func (u *Update) UnmarshalJSON(data []byte) error {
	var w updateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	u.ItemKey = firstNonEmpty(w.ItemKey, w.ItemName)
	u.ActorID = firstNonEmpty(w.ActorID, w.UserID)
	u.Reason = w.Reason

	raw := firstNonEmpty(w.Status, w.Action)
	if st, err := ParseStatus(raw); err == nil {
		u.Status = st
	} else {
		u.Status = Status(raw)
	}
	return nil
}

// Record is the applied availability state of one item within a scope.
type Record struct {
	ItemKey   string    `json:"item_key"`
	Status    Status    `json:"status"`
	ActorID   string    `json:"actor_id"`
	Reason    string    `json:"reason,omitempty"`
	AppliedAt time.Time `json:"applied_at"`
}

// Event names used in the realtime Message envelope.
const (
	EventSnapshot    = "snapshot"
	EventItemAdded   = "item-added"
	EventItemRemoved = "item-removed"
)

// EventFor returns the realtime event name for an applied record:
// an unavailable item is added to the 86 list, an available one removed.
func EventFor(r Record) string {
	if r.Status == StatusUnavailable {
		return EventItemAdded
	}
	return EventItemRemoved
}

// Message is the JSON envelope sent to realtime clients.
//
// For EventSnapshot, Data holds a []Record with every tracked item.
// For item events, Data holds the single applied Record.
type Message struct {
	Event string          `json:"event"`
	Scope string          `json:"scope"`
	Data  json.RawMessage `json:"data"`
}

// NewSnapshotMessage encodes the full record list for scope.
func NewSnapshotMessage(scope string, records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return encode(EventSnapshot, scope, records)
}

// NewRecordMessage encodes one applied record for scope.
func NewRecordMessage(scope string, r Record) ([]byte, error) {
	return encode(EventFor(r), scope, r)
}

func encode(event, scope string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("types: encode %s: %w", event, err)
	}
	return json.Marshal(Message{Event: event, Scope: scope, Data: data})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
