// Package feed fans Postgres row-change notifications out to per-collection
// subscriptions.
package feed

import (
	"encoding/json"
	"fmt"
)

// Kind is the type of row change carried by a ChangeEvent.
type Kind string

const (
	Inserted Kind = "INSERT"
	Updated  Kind = "UPDATE"
	Deleted  Kind = "DELETE"
)

// Mask selects which kinds of change a subscription receives.
type Mask uint8

const (
	MaskInsert Mask = 1 << iota
	MaskUpdate
	MaskDelete

	MaskAll = MaskInsert | MaskUpdate | MaskDelete
)

// Has reports whether the mask admits k.
func (m Mask) Has(k Kind) bool {
	switch k {
	case Inserted:
		return m&MaskInsert != 0
	case Updated:
		return m&MaskUpdate != 0
	case Deleted:
		return m&MaskDelete != 0
	}
	return false
}

// ChangeEvent is one row change. Record holds the full row for inserts and
// updates and is empty for deletes. A row too large for a notification
// arrives without its record; the broker re-reads it before dispatch.
type ChangeEvent struct {
	Collection string          `json:"table"`
	Kind       Kind            `json:"op"`
	ID         string          `json:"id"`
	Record     json.RawMessage `json:"record,omitempty"`
}

// Decode unmarshals the event's record into v.
func (e ChangeEvent) Decode(v any) error {
	if len(e.Record) == 0 {
		return fmt.Errorf("%s event for %s/%s carries no record", e.Kind, e.Collection, e.ID)
	}
	return json.Unmarshal(e.Record, v)
}

// parseEvent decodes a notification payload written by the row-change trigger.
func parseEvent(payload string) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("failed to decode change payload: %w", err)
	}
	if ev.Collection == "" || ev.ID == "" {
		return ChangeEvent{}, fmt.Errorf("change payload missing table or id")
	}
	switch ev.Kind {
	case Inserted, Updated:
		if string(ev.Record) == "null" {
			ev.Record = nil
		}
	case Deleted:
		ev.Record = nil
	default:
		return ChangeEvent{}, fmt.Errorf("unknown change op %q", ev.Kind)
	}
	return ev, nil
}
