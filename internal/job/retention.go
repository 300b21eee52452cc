// Package job holds the opt-in maintenance jobs. None of them take part in
// the request path.
package job

import (
	"context"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"github.com/longhang2004/content-service/internal/store"
)

// VersionRetention prunes redundant intermediate versions: when several
// versions of one content item land inside the same rounded time window,
// only the last of them is kept. Version 1 and the newest version of each
// content item are never pruned, and pruning is a soft delete, so the
// version sequence stays monotonic for the sequencer.
type VersionRetention struct {
	store  store.Store
	window time.Duration
}

// NewVersionRetention creates a new VersionRetention instance.
func NewVersionRetention(store store.Store, window time.Duration) *VersionRetention {
	return &VersionRetention{
		store:  store,
		window: window,
	}
}

// Sweep collapses the versions created in the last two windows.
func (r *VersionRetention) Sweep() {
	now := time.Now()
	from := now.Add(-2 * r.window)

	versions, err := r.store.ListVersionsByCreatedTime(context.TODO(), from, now)
	if err != nil {
		logrus.Errorf("error listing versions for retention: %v", err)
		return
	}

	remove := make(map[string]goset.Set[int])

	// versions arrive grouped per content, ascending by version
	lastContent := ""
	lastSlot := time.Time{}
	lastVersion := 0
	for _, ver := range versions {
		if ver.ContentID != lastContent {
			flushKeep(remove, lastContent, lastVersion)
			lastContent = ver.ContentID
			lastSlot = ver.CreatedAt.Round(r.window)
			lastVersion = ver.Version
			continue
		}

		slot := ver.CreatedAt.Round(r.window)
		if slot.Equal(lastSlot) && lastVersion > 1 {
			// same window as the previous version, previous one is redundant
			if _, ok := remove[ver.ContentID]; !ok {
				remove[ver.ContentID] = goset.NewSet[int]()
			}
			remove[ver.ContentID].Add(lastVersion)
		} else {
			lastSlot = slot
		}
		lastVersion = ver.Version
	}
	flushKeep(remove, lastContent, lastVersion)

	if len(remove) == 0 {
		return
	}

	if err := r.store.DeleteVersions(context.TODO(), remove); err != nil {
		logrus.Errorf("error pruning versions: %v", err)
		return
	}

	logrus.Infof("pruned versions: %v", remove)
}

// flushKeep makes sure the newest seen version of a content item survives.
func flushKeep(remove map[string]goset.Set[int], contentID string, version int) {
	if contentID == "" {
		return
	}
	if set, ok := remove[contentID]; ok {
		set.Remove(version)
		if set.Cardinality() == 0 {
			delete(remove, contentID)
		}
	}
}
