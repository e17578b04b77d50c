// Package store holds the in-memory project data an agent's tool calls
// read and mutate during a scenario run, and computes structural diffs
// between point-in-time snapshots of that data.
package store

import (
	"sort"
	"sync"
)

// Entity is a flat field-name → value mapping. Values are scalars or
// nested maps (e.g. a "settings" map); they follow JSON typing rules.
type Entity map[string]any

// Store is the mutable backing store for one scenario run. Each collection
// is keyed by entity id.
type Store struct {
	mu sync.RWMutex

	projects    map[string]Entity
	chapters    map[string]Entity
	timelines   map[string]Entity
	blocks      map[string]Entity
	mediaAssets map[string]Entity
}

func New() *Store {
	return &Store{
		projects:    make(map[string]Entity),
		chapters:    make(map[string]Entity),
		timelines:   make(map[string]Entity),
		blocks:      make(map[string]Entity),
		mediaAssets: make(map[string]Entity),
	}
}

// Snapshot is an immutable point-in-time copy of all collections. It is
// never mutated after capture; later writes to the live store must not
// show up in a previously taken snapshot.
type Snapshot struct {
	Projects    map[string]Entity `json:"projects"`
	Chapters    map[string]Entity `json:"chapters"`
	Timelines   map[string]Entity `json:"timelines"`
	Blocks      map[string]Entity `json:"blocks"`
	MediaAssets map[string]Entity `json:"mediaAssets"`
}

func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &Snapshot{
		Projects:    copyCollection(s.projects),
		Chapters:    copyCollection(s.chapters),
		Timelines:   copyCollection(s.timelines),
		Blocks:      copyCollection(s.blocks),
		MediaAssets: copyCollection(s.mediaAssets),
	}
}

func (s *Store) PutProject(id string, e Entity)    { s.put(s.projects, id, e) }
func (s *Store) PutChapter(id string, e Entity)    { s.put(s.chapters, id, e) }
func (s *Store) PutTimeline(id string, e Entity)   { s.put(s.timelines, id, e) }
func (s *Store) PutBlock(id string, e Entity)      { s.put(s.blocks, id, e) }
func (s *Store) PutMediaAsset(id string, e Entity) { s.put(s.mediaAssets, id, e) }

func (s *Store) Project(id string) (Entity, bool)    { return s.get(s.projects, id) }
func (s *Store) Chapter(id string) (Entity, bool)    { return s.get(s.chapters, id) }
func (s *Store) Timeline(id string) (Entity, bool)   { return s.get(s.timelines, id) }
func (s *Store) Block(id string) (Entity, bool)      { return s.get(s.blocks, id) }
func (s *Store) MediaAsset(id string) (Entity, bool) { return s.get(s.mediaAssets, id) }

func (s *Store) DeleteBlock(id string) bool      { return s.delete(s.blocks, id) }
func (s *Store) DeleteTimeline(id string) bool   { return s.delete(s.timelines, id) }
func (s *Store) DeleteMediaAsset(id string) bool { return s.delete(s.mediaAssets, id) }

// Projects returns all projects sorted by id. The other listers follow
// the same contract: deep copies, stable order.
func (s *Store) Projects() []Entity    { return s.list(s.projects) }
func (s *Store) Chapters() []Entity    { return s.list(s.chapters) }
func (s *Store) Timelines() []Entity   { return s.list(s.timelines) }
func (s *Store) Blocks() []Entity      { return s.list(s.blocks) }
func (s *Store) MediaAssets() []Entity { return s.list(s.mediaAssets) }

// UpdateBlock applies changes to an existing block. Returns false if the
// block does not exist.
func (s *Store) UpdateBlock(id string, changes map[string]any) bool {
	return s.update(s.blocks, id, changes)
}

func (s *Store) UpdateTimeline(id string, changes map[string]any) bool {
	return s.update(s.timelines, id, changes)
}

func (s *Store) UpdateMediaAsset(id string, changes map[string]any) bool {
	return s.update(s.mediaAssets, id, changes)
}

func (s *Store) put(coll map[string]Entity, id string, e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll[id] = copyEntity(e)
}

func (s *Store) get(coll map[string]Entity, id string) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := coll[id]
	if !ok {
		return nil, false
	}
	return copyEntity(e), true
}

func (s *Store) delete(coll map[string]Entity, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := coll[id]; !ok {
		return false
	}
	delete(coll, id)
	return true
}

func (s *Store) update(coll map[string]Entity, id string, changes map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := coll[id]
	if !ok {
		return false
	}
	for k, v := range changes {
		e[k] = copyValue(v)
	}
	return true
}

func (s *Store) list(coll map[string]Entity) []Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyEntity(coll[id]))
	}
	return out
}

func copyCollection(coll map[string]Entity) map[string]Entity {
	out := make(map[string]Entity, len(coll))
	for id, e := range coll {
		out[id] = copyEntity(e)
	}
	return out
}

func copyEntity(e Entity) Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = copyValue(nested)
		}
		return out
	case Entity:
		return map[string]any(copyEntity(val))
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = copyValue(nested)
		}
		return out
	default:
		return v
	}
}
