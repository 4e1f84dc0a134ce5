package model

import (
	"encoding/json"
	"fmt"
)

// DestinationKind tells what a DestinationID value means.
type DestinationKind string

const (
	// DestinationPending is a placeholder file path written by a sync run.
	// The real remote identifier is assigned later when the file is published.
	DestinationPending DestinationKind = "pending"

	// DestinationPublished is a real remote identifier in the destination service.
	DestinationPublished DestinationKind = "published"
)

// DestinationID is a sum type: Pending(path) | Published(remoteID).
// Construct it with Pending or Published; the zero value is invalid.
type DestinationID struct {
	kind  DestinationKind
	value string
}

// Pending creates a placeholder destination identifier for a generated file path.
func Pending(path string) DestinationID {
	return DestinationID{kind: DestinationPending, value: path}
}

// Published creates a destination identifier for a real remote identifier.
func Published(remoteID string) DestinationID {
	return DestinationID{kind: DestinationPublished, value: remoteID}
}

// ParseDestinationID rebuilds a DestinationID from its stored parts.
func ParseDestinationID(kind, value string) (DestinationID, error) {
	switch DestinationKind(kind) {
	case DestinationPending:
		return Pending(value), nil
	case DestinationPublished:
		return Published(value), nil
	default:
		return DestinationID{}, fmt.Errorf("unknown destination kind %q", kind)
	}
}

// Kind returns the variant.
func (d DestinationID) Kind() DestinationKind { return d.kind }

// Value returns the path (pending) or remote identifier (published).
func (d DestinationID) Value() string { return d.value }

// IsPending reports whether d is a placeholder path.
func (d DestinationID) IsPending() bool { return d.kind == DestinationPending }

// IsPublished reports whether d is a real remote identifier.
func (d DestinationID) IsPublished() bool { return d.kind == DestinationPublished }

// String formats the identifier as kind(value).
func (d DestinationID) String() string {
	return fmt.Sprintf("%s(%s)", d.kind, d.value)
}

// MarshalJSON encodes as {"kind":"pending","value":"folder/x.json"}.
func (d DestinationID) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  DestinationKind `json:"kind"`
		Value string          `json:"value"`
	}{d.kind, d.value})
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (d *DestinationID) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDestinationID(raw.Kind, raw.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
