package tagindex

// EventType is the closed set of reindex event kinds.
type EventType string

const (
	EventFull   EventType = "full"
	EventUpdate EventType = "update"
	EventRemove EventType = "remove"
	EventRename EventType = "rename"
)

// Meta carries the index totals after the mutation the event describes.
type Meta struct {
	Files int `json:"files"`
	Tags  int `json:"tags"`
}

// Event describes one index mutation. Incremental operations report exactly
// the affected keys and tags, never "everything changed", so observers can
// perform minimal updates. TagsAdded lists only tags that did not exist
// anywhere in the index before the operation; TagsRemoved lists only tags
// whose member list emptied.
type Event struct {
	Type         EventType `json:"type"`
	FilesAdded   []string  `json:"files_added,omitempty"`
	FilesRemoved []string  `json:"files_removed,omitempty"`
	TagsAdded    []string  `json:"tags_added,omitempty"`
	TagsRemoved  []string  `json:"tags_removed,omitempty"`
	Meta         Meta      `json:"meta"`
}
