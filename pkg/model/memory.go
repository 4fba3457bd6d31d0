// Package model defines the data model shared by the leak detection engine.
package model

import "time"

// ObjectType classifies a heap object observed in a snapshot.
type ObjectType string

const (
	ObjectTypeGCRoot        ObjectType = "gc-root"
	ObjectTypeDOMNode       ObjectType = "dom-node"
	ObjectTypeComponent     ObjectType = "component-instance"
	ObjectTypeEventListener ObjectType = "event-listener"
	ObjectTypeClosure       ObjectType = "closure"
	ObjectTypeFunction      ObjectType = "function"
	ObjectTypeObject        ObjectType = "object"
	ObjectTypeArray         ObjectType = "array"
	ObjectTypeMap           ObjectType = "map"
	ObjectTypeSet           ObjectType = "set"
	ObjectTypePromise       ObjectType = "promise"
	ObjectTypeTimer         ObjectType = "timer"
	ObjectTypeUnknown       ObjectType = "unknown"
)

// MemoryObject represents a single object in a captured heap graph.
// IDs are unique within one snapshot; the snapshot provider guarantees that
// the same logical heap object keeps the same ID across snapshots.
type MemoryObject struct {
	ID            string                 `json:"id"`
	Type          ObjectType             `json:"type"`
	Name          string                 `json:"name,omitempty"`
	Size          int64                  `json:"size"`
	RetainedCount int                    `json:"retained_count"`
	ComponentName string                 `json:"component_name,omitempty"`
	ComponentPath string                 `json:"component_path,omitempty"`
	CreatedAt     int64                  `json:"created_at,omitempty"` // unix milliseconds, 0 if unknown
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// MetaBool reads a boolean metadata flag. Missing or mistyped values read as false.
func (o *MemoryObject) MetaBool(key string) bool {
	if o == nil || o.Metadata == nil {
		return false
	}
	v, ok := o.Metadata[key].(bool)
	return ok && v
}

// MetaString reads a string metadata value. Missing or mistyped values read as "".
func (o *MemoryObject) MetaString(key string) string {
	if o == nil || o.Metadata == nil {
		return ""
	}
	v, _ := o.Metadata[key].(string)
	return v
}

// MetaInt reads a numeric metadata value. JSON decoding yields float64, so both
// forms are accepted. Missing or mistyped values read as 0.
func (o *MemoryObject) MetaInt(key string) int64 {
	if o == nil || o.Metadata == nil {
		return 0
	}
	switch v := o.Metadata[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// MemoryReference represents a directed reference between two objects
// within the same snapshot.
type MemoryReference struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Name     string `json:"name,omitempty"` // property or slot label
	Type     string `json:"type,omitempty"`
	Weight   int64  `json:"weight,omitempty"`
}

// SnapshotMetadata carries runtime-level context captured with a snapshot.
type SnapshotMetadata struct {
	HeapUsed  int64  `json:"heap_used,omitempty"`
	HeapTotal int64  `json:"heap_total,omitempty"`
	PageURL   string `json:"page_url,omitempty"`
	Framework string `json:"framework,omitempty"`
}

// MemorySnapshot is an immutable capture of an application's object graph.
type MemorySnapshot struct {
	ID         string             `json:"id"`
	Label      string             `json:"label,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Objects    []*MemoryObject    `json:"objects"`
	References []*MemoryReference `json:"references"`
	TotalSize  int64              `json:"total_size"`
	Metadata   SnapshotMetadata   `json:"metadata"`
}

// ObjectIndex builds an id -> object map for the snapshot.
func (s *MemorySnapshot) ObjectIndex() map[string]*MemoryObject {
	idx := make(map[string]*MemoryObject, len(s.Objects))
	for _, obj := range s.Objects {
		idx[obj.ID] = obj
	}
	return idx
}

// IncomingIndex builds a targetID -> incoming references map for the snapshot.
func (s *MemorySnapshot) IncomingIndex() map[string][]*MemoryReference {
	idx := make(map[string][]*MemoryReference, len(s.Objects))
	for _, ref := range s.References {
		idx[ref.TargetID] = append(idx[ref.TargetID], ref)
	}
	return idx
}
