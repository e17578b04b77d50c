package store

import (
	"encoding/json"
	"sort"
)

// EntityChange records an entity that was added or deleted between two
// snapshots, with its full data at the relevant point in time.
type EntityChange struct {
	ID   string `json:"id"`
	Data Entity `json:"data"`
}

// EntityModification records an entity present in both snapshots whose
// serialized data differs.
type EntityModification struct {
	ID     string `json:"id"`
	Before Entity `json:"before"`
	After  Entity `json:"after"`
}

// CollectionDiff holds the changes for one entity collection. An id
// appears in at most one of the three lists.
type CollectionDiff struct {
	Added    []EntityChange       `json:"added"`
	Modified []EntityModification `json:"modified"`
	Deleted  []EntityChange       `json:"deleted"`
}

func (d CollectionDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Deleted) == 0
}

// Diff is the structural difference between two snapshots. Projects and
// chapters are containers and are not diffed.
type Diff struct {
	Blocks      CollectionDiff `json:"blocks"`
	Timelines   CollectionDiff `json:"timelines"`
	MediaAssets CollectionDiff `json:"mediaAssets"`
}

func (d *Diff) Empty() bool {
	return d.Blocks.Empty() && d.Timelines.Empty() && d.MediaAssets.Empty()
}

// ComputeDiff compares two snapshots collection by collection. Either
// snapshot may be nil (a run that failed before capture); without both
// sides there is no change to report, so the diff degrades to empty rather
// than marking every entity added or deleted.
func ComputeDiff(before, after *Snapshot) *Diff {
	if before == nil || after == nil {
		return &Diff{}
	}

	return &Diff{
		Blocks:      diffCollection(before.Blocks, after.Blocks),
		Timelines:   diffCollection(before.Timelines, after.Timelines),
		MediaAssets: diffCollection(before.MediaAssets, after.MediaAssets),
	}
}

func diffCollection(before, after map[string]Entity) CollectionDiff {
	diff := CollectionDiff{
		Added:    make([]EntityChange, 0),
		Modified: make([]EntityModification, 0),
		Deleted:  make([]EntityChange, 0),
	}

	for _, id := range sortedIDs(after) {
		entity := after[id]
		prev, existed := before[id]
		if !existed {
			diff.Added = append(diff.Added, EntityChange{ID: id, Data: copyEntity(entity)})
			continue
		}
		if !DeepEqual(prev, entity) {
			diff.Modified = append(diff.Modified, EntityModification{
				ID:     id,
				Before: copyEntity(prev),
				After:  copyEntity(entity),
			})
		}
	}

	for _, id := range sortedIDs(before) {
		if _, exists := after[id]; !exists {
			diff.Deleted = append(diff.Deleted, EntityChange{ID: id, Data: copyEntity(before[id])})
		}
	}

	return diff
}

func sortedIDs(coll map[string]Entity) []string {
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeepEqual reports whether two entities serialize identically. Go's JSON
// encoder emits map keys in sorted order, so field order never affects the
// comparison; numeric values compare by their JSON representation.
func DeepEqual(a, b Entity) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}
