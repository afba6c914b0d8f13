// Package api defines the JSON wire types of the sync protocol. The field
// names are what deployed interviewing clients already send and expect.
package api

import "encoding/json"

// Case is one questionnaire record on the wire. Newer clients carry the
// questionnaire content as a "level-1" JSON object; clients predating that
// format send flat "data" text lines instead. Exactly one of the two is set.
type Case struct {
	ID          string          `json:"id"`
	CaseIDs     string          `json:"caseids"`
	Label       string          `json:"label,omitempty"`
	Level1      json.RawMessage `json:"level-1,omitempty"`
	Data        []string        `json:"data,omitempty"`
	Clock       json.RawMessage `json:"clock,omitempty"`
	Deleted     bool            `json:"deleted,omitempty"`
	Verified    bool            `json:"verified,omitempty"`
	PartialSave *PartialSave    `json:"partialSave,omitempty"`
}

// PartialSave marks a record as an in-progress edit and points at the field
// the operator stopped on.
type PartialSave struct {
	Mode  string           `json:"mode"`
	Field PartialSaveField `json:"field"`
}

// PartialSaveField locates a field inside the questionnaire's hierarchy.
type PartialSaveField struct {
	Name              string `json:"name"`
	LevelKey          string `json:"levelKey"`
	RecordOccurrence  int    `json:"recordOccurrence,omitempty"`
	ItemOccurrence    int    `json:"itemOccurrence,omitempty"`
	SubitemOccurrence int    `json:"subitemOccurrence,omitempty"`
}

// PushRequest is the batch a device uploads.
type PushRequest struct {
	Cases []Case `json:"cases"`
}

// PushResponse reports what the server kept. Rejected lists the ids of
// entries dropped as stale; resending them unchanged is pointless.
type PushResponse struct {
	Revision int64    `json:"revision"`
	Accepted int      `json:"accepted"`
	Rejected []string `json:"rejected,omitempty"`
}

// PullResponse carries the incremental batch. Revision is the watermark the
// client passes as ?since= on its next pull.
type PullResponse struct {
	Cases    []Case `json:"cases"`
	Revision int64  `json:"revision"`
}

// WatermarkResponse is the device's last recorded sync revision.
type WatermarkResponse struct {
	Revision int64 `json:"revision"`
}
