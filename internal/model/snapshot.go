package model

import "encoding/json"

// MetadataSnapshot is the metadata record as captured inside a snapshot.
type MetadataSnapshot struct {
	Subject       *string `json:"subject"`
	Topic         *string `json:"topic"`
	Difficulty    *string `json:"difficulty"`
	Duration      *int    `json:"duration"`
	Prerequisites *string `json:"prerequisites"`
}

// Snapshot captures everything restorable about a content item at one point
// in time. It is immutable once built and is persisted verbatim inside a
// ContentVersion row. Archival state is deliberately not part of a snapshot:
// restoring always brings content back to a live state.
type Snapshot struct {
	Title       string            `json:"title"`
	Body        *string           `json:"body"`
	ContentType string            `json:"contentType"`
	ResourceURL *string           `json:"resourceUrl"`
	HierarchyID *string           `json:"hierarchyId"`
	Metadata    *MetadataSnapshot `json:"metadata"`
	Tags        []string          `json:"tags"`
}

func (s *Snapshot) MarshalBinary() ([]byte, error) {
	return json.Marshal(s)
}

func (s *Snapshot) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, s)
}
