package domain

// DeleteResult is the per-bundle outcome of a lifecycle operation. The
// orchestrator never throws across its boundary, partial failures are
// reported here instead.
type DeleteResult struct {
	BundleId string `json:"bundleId"`
	Success  bool   `json:"success"`
	// PartialSuccess is set when the metadata mutation succeeded but the
	// storage cleanup did not.
	PartialSuccess  bool   `json:"partialSuccess,omitempty"`
	MetadataDeleted bool   `json:"metadataDeleted"`
	StorageDeleted  bool   `json:"storageDeleted"`
	StorageError    string `json:"storageError,omitempty"`
	Message         string `json:"message"`
}

// StorageCleanupResult aggregates the object-store side of a complete
// delete.
type StorageCleanupResult struct {
	DeletedObjects int `json:"deletedObjects"`
	TotalObjects   int `json:"totalObjects"`
	// Skipped means storage was not configured and cleanup did not run.
	Skipped bool `json:"skipped,omitempty"`
}

type CompleteDeleteResult struct {
	BundleId      string               `json:"bundleId"`
	Success       bool                 `json:"success"`
	Message       string               `json:"message"`
	StorageResult StorageCleanupResult `json:"storageResult"`
}

// BulkDeleteResult aggregates a bulk lifecycle delete. Items preserves the
// input order, one entry per requested id.
type BulkDeleteResult struct {
	OperationId          string         `json:"operationId"`
	Success              bool           `json:"success"`
	Message              string         `json:"message"`
	MetadataSuccessCount int            `json:"metadataSuccessCount"`
	StorageSuccessCount  int            `json:"storageSuccessCount"`
	Items                []DeleteResult `json:"perItem"`
}
