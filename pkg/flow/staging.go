package flow

import (
	"fmt"
	"sync"

	"rideon/models"
)

// StagedAssets maps a document type to the ordered local asset references
// captured for it. References are opaque handles (local file paths here).
type StagedAssets map[models.DocumentType][]string

// StagingStore holds locally-captured, not-yet-submitted document assets,
// independent of network state. It exists so a user who captured documents but
// has not pressed submit can move back and forth through the flow without
// re-capturing, and so the unsaved-changes guard can detect uncommitted work.
// Safe for concurrent use; the upload task runner mutates it asynchronously.
type StagingStore struct {
	mu    sync.RWMutex
	items StagedAssets
}

func NewStagingStore() *StagingStore {
	return &StagingStore{items: StagedAssets{}}
}

// Add appends an asset reference for the given document type.
func (s *StagingStore) Add(t models.DocumentType, assetRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[t] = append(s.items[t], assetRef)
}

// Remove deletes the asset at index for the given type, preserving order.
func (s *StagingStore) Remove(t models.DocumentType, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := s.items[t]
	if index < 0 || index >= len(refs) {
		return fmt.Errorf("staging: no asset at index %d for type %s", index, t)
	}
	s.items[t] = append(refs[:index], refs[index+1:]...)
	if len(s.items[t]) == 0 {
		delete(s.items, t)
	}
	return nil
}

// RemoveRef deletes the first staged entry matching ref for the given type.
// Safe against index shifts from concurrent stage/unstage calls.
func (s *StagingStore) RemoveRef(t models.DocumentType, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := s.items[t]
	for i, r := range refs {
		if r == ref {
			s.items[t] = append(refs[:i], refs[i+1:]...)
			if len(s.items[t]) == 0 {
				delete(s.items, t)
			}
			return nil
		}
	}
	return fmt.Errorf("staging: no asset %s for type %s", ref, t)
}

// References returns a copy of the staged refs for one type, in capture order.
func (s *StagingStore) References(t models.DocumentType) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.items[t]...)
}

// All returns a copy of the whole staging map.
func (s *StagingStore) All() StagedAssets {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := StagedAssets{}
	for t, refs := range s.items {
		out[t] = append([]string(nil), refs...)
	}
	return out
}

// Empty reports whether nothing is staged.
func (s *StagingStore) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items) == 0
}

// Satisfies reports whether every requirement marked required has at least one
// staged asset. Surfaced to clients by the requirements endpoint; callers never
// inspect individual entries.
func (s *StagingStore) Satisfies(reqs []models.DocumentTypeRequirement) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range reqs {
		if !r.Required {
			continue
		}
		if len(s.items[r.Type]) == 0 {
			return false
		}
	}
	return true
}

// Clear drops all staged assets (used when the session finalizes).
func (s *StagingStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = StagedAssets{}
}

func (s *StagingStore) replaceAll(a StagedAssets) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = StagedAssets{}
	for t, refs := range a {
		s.items[t] = append([]string(nil), refs...)
	}
}
