package service

import (
	"context"
	"reflect"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
)

type FieldChange struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

type VersionRef struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

type VersionDiff struct {
	VersionA   VersionRef             `json:"versionA"`
	VersionB   VersionRef             `json:"versionB"`
	Changes    map[string]FieldChange `json:"changes"`
	HasChanges bool                   `json:"hasChanges"`
}

// CompareVersions diffs two snapshots of the same content item field by
// field. Scalar fields contribute a change entry when unequal, metadata is
// compared structurally as one unit, tags as an order-independent set. The
// diff carries no ordering constraint: either argument may be the earlier
// version, only the from/to labeling follows argument order.
func (v *VersioningService) CompareVersions(ctx context.Context, contentID uuid.UUID, versionA, versionB int) (*VersionDiff, error) {
	verA, err := v.GetVersion(ctx, contentID, versionA)
	if err != nil {
		return nil, err
	}
	verB, err := v.GetVersion(ctx, contentID, versionB)
	if err != nil {
		return nil, err
	}

	snapA := verA.Snapshot
	snapB := verB.Snapshot

	changes := make(map[string]FieldChange)

	if snapA.Title != snapB.Title {
		changes["title"] = FieldChange{From: snapA.Title, To: snapB.Title}
	}
	if !eqStringPtr(snapA.Body, snapB.Body) {
		changes["body"] = FieldChange{From: snapA.Body, To: snapB.Body}
	}
	if snapA.ContentType != snapB.ContentType {
		changes["contentType"] = FieldChange{From: snapA.ContentType, To: snapB.ContentType}
	}
	if !eqStringPtr(snapA.ResourceURL, snapB.ResourceURL) {
		changes["resourceUrl"] = FieldChange{From: snapA.ResourceURL, To: snapB.ResourceURL}
	}
	if !eqStringPtr(snapA.HierarchyID, snapB.HierarchyID) {
		changes["hierarchyId"] = FieldChange{From: snapA.HierarchyID, To: snapB.HierarchyID}
	}

	// any sub-field difference reports the whole metadata object
	if !reflect.DeepEqual(snapA.Metadata, snapB.Metadata) {
		changes["metadata"] = FieldChange{From: snapA.Metadata, To: snapB.Metadata}
	}

	// any membership difference reports both full tag lists
	if !mapset.NewSet(snapA.Tags...).Equal(mapset.NewSet(snapB.Tags...)) {
		changes["tags"] = FieldChange{From: snapA.Tags, To: snapB.Tags}
	}

	return &VersionDiff{
		VersionA:   VersionRef{Version: verA.Version, CreatedAt: verA.CreatedAt},
		VersionB:   VersionRef{Version: verB.Version, CreatedAt: verB.CreatedAt},
		Changes:    changes,
		HasChanges: len(changes) > 0,
	}, nil
}

func eqStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
