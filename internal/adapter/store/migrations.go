package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var keySchema = []byte("schema")

// SchemaInfo records what the stored vectors were built with.
type SchemaInfo struct {
	Version   int    `json:"version"`
	Dimension int    `json:"dimension"`
	Model     string `json:"model"`
}

// CompatResult describes whether the index can serve the active embedder.
type CompatResult struct {
	NeedsRebuild bool
	Stored       SchemaInfo
	Reason       string
}

func initSchema(tx *bbolt.Tx) error {
	if tx.Bucket(bucketMeta).Get(keySchema) != nil {
		return nil
	}
	return writeSchema(tx, SchemaInfo{Version: CurrentSchemaVersion})
}

func readSchema(tx *bbolt.Tx) SchemaInfo {
	var info SchemaInfo
	data := tx.Bucket(bucketMeta).Get(keySchema)
	if data == nil {
		return info
	}
	if err := json.Unmarshal(data, &info); err != nil {
		info.Version = 0
	}
	return info
}

func writeSchema(tx *bbolt.Tx, info SchemaInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketMeta).Put(keySchema, data)
}

// Schema retrieves the stored schema info.
func (s *BoltStore) Schema() (SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		info = readSchema(tx)
		return nil
	})
	return info, err
}

// CheckCompat compares the stored schema with the active embedding model.
// An empty index is always compatible.
func (s *BoltStore) CheckCompat(model string, dimension int) (*CompatResult, error) {
	info, err := s.Schema()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &CompatResult{Stored: info}
	switch {
	case info.Version > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("database created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
	case info.Version < 1:
		result.NeedsRebuild = true
		result.Reason = "unreadable schema info"
	case info.Dimension == 0:
		// nothing written yet
	case dimension > 0 && info.Dimension != dimension:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("dimension changed from %d to %d", info.Dimension, dimension)
	case model != "" && info.Model != "" && info.Model != model:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("embedding model changed from %s to %s", info.Model, model)
	}

	return result, nil
}
