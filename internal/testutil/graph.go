// Package testutil provides snapshot graph builders for engine tests.
package testutil

import (
	"time"

	"github.com/frontscan/pkg/model"
)

// GraphBuilder assembles MemorySnapshot fixtures.
type GraphBuilder struct {
	snap *model.MemorySnapshot
}

// NewGraph creates a builder for a snapshot with the given id.
func NewGraph(id string) *GraphBuilder {
	return &GraphBuilder{
		snap: &model.MemorySnapshot{
			ID:         id,
			Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Objects:    []*model.MemoryObject{},
			References: []*model.MemoryReference{},
		},
	}
}

// Object adds an object with the given id, type and size.
func (b *GraphBuilder) Object(id string, typ model.ObjectType, size int64) *GraphBuilder {
	b.snap.Objects = append(b.snap.Objects, &model.MemoryObject{
		ID:            id,
		Type:          typ,
		Size:          size,
		RetainedCount: 1,
	})
	b.snap.TotalSize += size
	return b
}

// ObjectFull adds a fully specified object.
func (b *GraphBuilder) ObjectFull(obj *model.MemoryObject) *GraphBuilder {
	b.snap.Objects = append(b.snap.Objects, obj)
	b.snap.TotalSize += obj.Size
	return b
}

// Ref adds a named reference from source to target.
func (b *GraphBuilder) Ref(sourceID, targetID, name string) *GraphBuilder {
	b.snap.References = append(b.snap.References, &model.MemoryReference{
		SourceID: sourceID,
		TargetID: targetID,
		Name:     name,
	})
	return b
}

// Timestamp overrides the snapshot timestamp.
func (b *GraphBuilder) Timestamp(ts time.Time) *GraphBuilder {
	b.snap.Timestamp = ts
	return b
}

// Framework sets the runtime framework metadata.
func (b *GraphBuilder) Framework(fw string) *GraphBuilder {
	b.snap.Metadata.Framework = fw
	return b
}

// Build returns the assembled snapshot.
func (b *GraphBuilder) Build() *model.MemorySnapshot {
	return b.snap
}

// LastObject returns the most recently added object, for tweaking fields.
func (b *GraphBuilder) LastObject() *model.MemoryObject {
	return b.snap.Objects[len(b.snap.Objects)-1]
}
