package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Upload is the catalog record for one ingestion event. It is written
// only after the upload's data rows have been persisted and is never
// mutated afterwards.
type Upload struct {
	ID                uuid.UUID `json:"id"`
	OwnerID           uuid.UUID `json:"owner_id"`
	FileName          string    `json:"filename"`
	PhysicalTableName string    `json:"table_name"`
	UploadedAt        time.Time `json:"uploaded_at"`
	RowCount          int       `json:"row_count"`
}

// NewUpload creates a catalog record for a completed ingestion.
func NewUpload(id, ownerID uuid.UUID, fileName string, rowCount int) Upload {
	return Upload{
		ID:                id,
		OwnerID:           ownerID,
		FileName:          fileName,
		PhysicalTableName: PhysicalTableName(id),
		UploadedAt:        time.Now().UTC(),
		RowCount:          rowCount,
	}
}

// PhysicalTableName derives the dedicated storage table name for an
// upload. It is a pure function of the upload id, so distinct uploads
// never collide.
func PhysicalTableName(uploadID uuid.UUID) string {
	return "data_" + strings.ReplaceAll(uploadID.String(), "-", "_")
}

// RowRecord is one data row destined for an upload's physical table.
// Payload must already be JSON-safe.
type RowRecord struct {
	OwnerID uuid.UUID      `json:"owner_id"`
	Payload map[string]any `json:"payload"`
}

// PayloadJSON marshals the payload for a JSONB column.
func (r RowRecord) PayloadJSON() (json.RawMessage, error) {
	if r.Payload == nil {
		return json.Marshal(map[string]any{})
	}
	return json.Marshal(r.Payload)
}

// RowEnvelope is a stored row read back from a physical table, tagged
// with enough metadata for the transport layer to flatten it without
// magic keys leaking into internal code.
type RowEnvelope struct {
	RecordID    uuid.UUID      `json:"record_id"`
	OwnerID     uuid.UUID      `json:"owner_id"`
	SourceTable string         `json:"source_table,omitempty"`
	Payload     map[string]any `json:"payload"`
}

// Flatten lifts the payload to the top level, injecting record metadata
// under reserved underscore-prefixed keys so payload columns that happen
// to share those names are not silently clobbered.
func (e RowEnvelope) Flatten() map[string]any {
	out := make(map[string]any, len(e.Payload)+3)
	for k, v := range e.Payload {
		out[k] = v
	}
	out["_record_id"] = e.RecordID.String()
	out["_owner_id"] = e.OwnerID.String()
	if e.SourceTable != "" {
		out["_source_table"] = e.SourceTable
	}
	return out
}

// DataFilter narrows a cross-table aggregation query. SearchTerm and the
// date range are reserved: requests that set them are rejected rather
// than silently ignored.
type DataFilter struct {
	TableNames []string `json:"table_names,omitempty"`
	SearchTerm string   `json:"search_term,omitempty"`
	StartDate  string   `json:"start_date,omitempty"`
	EndDate    string   `json:"end_date,omitempty"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
}

// HasReservedFields reports whether any declared-but-unimplemented
// filter field is set.
func (f DataFilter) HasReservedFields() bool {
	return strings.TrimSpace(f.SearchTerm) != "" ||
		strings.TrimSpace(f.StartDate) != "" ||
		strings.TrimSpace(f.EndDate) != ""
}
