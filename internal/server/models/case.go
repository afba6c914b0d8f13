package models

import (
	"github.com/google/uuid"

	"casesync/internal/clock"
)

// PartialSaveField points into the hierarchical payload structure at the
// location where an in-progress edit stopped.
type PartialSaveField struct {
	Name              string `json:"name"`
	LevelKey          string `json:"levelKey"`
	RecordOccurrence  int    `json:"recordOccurrence"`
	ItemOccurrence    int    `json:"itemOccurrence"`
	SubitemOccurrence int    `json:"subitemOccurrence"`
}

// PartialSave marks a case that represents an incomplete edit rather than a
// finished case. Mode is the data-entry mode the client was in ("add",
// "modify" or "verify").
type PartialSave struct {
	Mode  string           `json:"mode"`
	Field PartialSaveField `json:"field"`
}

// Case is one data-collection record. The payload is an opaque compressed
// blob; the server never interprets it beyond compressing/decompressing at
// the wire boundary. The clock orders concurrent edits; Revision is
// assigned by storage on commit and is monotonic per dictionary.
type Case struct {
	GUID        uuid.UUID
	CaseIDs     string
	Label       string // optional, may be empty but never null
	Payload     []byte // gzip-compressed questionnaire data
	Clock       clock.VectorClock
	Revision    int64
	Deleted     bool
	Verified    bool
	PartialSave *PartialSave // nil for completed cases
}

// ServerCase is the minimal projection of a stored case consulted during
// reconciliation: its identity and its clock. The lookup must reflect a
// consistent snapshot at the moment reconciliation begins.
type ServerCase struct {
	GUID  uuid.UUID
	Clock clock.VectorClock
}
