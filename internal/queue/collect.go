package queue

import (
	"github.com/google/uuid"
	"github.com/phrazzld/scry-import/internal/domain"
)

// CollectOptions controls which finished items Collect turns into artifacts.
type CollectOptions struct {
	// IncludeHarvested re-collects items already marked as harvested, for a
	// full re-export.
	IncludeHarvested bool
}

// Collect maps every done item carrying a complete result to an artifact, in
// queue order. It is a pure function: the artifact ID and timestamp come from
// the item, so repeated calls over the same items return identical lists.
func Collect(items []Item, opts CollectOptions) []domain.Artifact {
	artifacts := make([]domain.Artifact, 0, len(items))
	for _, it := range items {
		if it.Status != StatusDone || !it.Result.Complete() {
			continue
		}
		if it.Harvested && !opts.IncludeHarvested {
			continue
		}
		artifacts = append(artifacts, domain.Artifact{
			ID:        it.ArtifactID,
			ItemID:    it.ID,
			Filename:  it.Payload.Filename,
			Exercise:  it.Result.Exercise.Clone(),
			MediaRef:  it.Result.MediaRef,
			CreatedAt: it.CompletedAt,
		})
	}
	return artifacts
}

// Collect returns the artifacts of the queue's done items without modifying
// the queue.
func (q *Queue) Collect(opts CollectOptions) []domain.Artifact {
	return Collect(q.Items(), opts)
}

// MarkHarvested flags the items behind the given artifact IDs as persisted so
// later collections skip them. It returns the number of items flagged.
func (q *Queue) MarkHarvested(artifactIDs []uuid.UUID) int {
	wanted := make(map[uuid.UUID]bool, len(artifactIDs))
	for _, id := range artifactIDs {
		wanted[id] = true
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, it := range q.items {
		if it.Status == StatusDone && wanted[it.ArtifactID] && !it.Harvested {
			it.Harvested = true
			n++
		}
	}
	return n
}
