package store

// ObjectInfo describes one stored object as reported by a prefix listing.
type ObjectInfo struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// ObjectDeleteResult is the outcome for a single key within a bulk delete.
type ObjectDeleteResult struct {
	Key     string `json:"key"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BulkDeleteResult aggregates a bulk delete. Results holds exactly one
// entry per requested key, in request order.
type BulkDeleteResult struct {
	TotalObjects   int                  `json:"totalObjects"`
	DeletedObjects int                  `json:"deletedObjects"`
	Results        []ObjectDeleteResult `json:"results"`
}

func (r BulkDeleteResult) AllDeleted() bool {
	return r.DeletedObjects == r.TotalObjects
}
