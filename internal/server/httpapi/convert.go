package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"casesync/internal/clock"
	"casesync/internal/server/models"
	"casesync/internal/server/repositories/cases"
	"casesync/pkg/api"
)

var errInvalidCaseID = errors.New("invalid case id")

// toModelCase converts one wire case into its storage form: the clock is
// decoded, the questionnaire text (either representation) is gzipped.
func toModelCase(in api.Case) (*models.Case, error) {
	guid, err := uuid.Parse(in.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", errInvalidCaseID, in.ID)
	}

	vc, err := clock.Decode(in.Clock)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", in.ID, err)
	}

	text := string(in.Level1)
	if len(in.Level1) == 0 {
		text = strings.Join(in.Data, "\n")
	}
	payload, err := cases.CompressPayload(text)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", in.ID, err)
	}

	c := &models.Case{
		GUID:     guid,
		CaseIDs:  in.CaseIDs,
		Label:    in.Label,
		Payload:  payload,
		Clock:    vc,
		Deleted:  in.Deleted,
		Verified: in.Verified,
	}
	if in.PartialSave != nil {
		c.PartialSave = &models.PartialSave{
			Mode: in.PartialSave.Mode,
			Field: models.PartialSaveField{
				Name:              in.PartialSave.Field.Name,
				LevelKey:          in.PartialSave.Field.LevelKey,
				RecordOccurrence:  in.PartialSave.Field.RecordOccurrence,
				ItemOccurrence:    in.PartialSave.Field.ItemOccurrence,
				SubitemOccurrence: in.PartialSave.Field.SubitemOccurrence,
			},
		}
	}
	return c, nil
}

// toAPICase converts a stored case back to the wire form. Questionnaire
// content that is a JSON object goes out as "level-1"; anything else is
// split back into "data" lines for pre-7.5 clients.
func toAPICase(c *models.Case) (api.Case, error) {
	text, err := cases.DecompressPayload(c.Payload)
	if err != nil {
		return api.Case{}, fmt.Errorf("case %s: %w", c.GUID, err)
	}

	clockJSON, err := json.Marshal(c.Clock)
	if err != nil {
		return api.Case{}, fmt.Errorf("case %s: %w", c.GUID, err)
	}

	out := api.Case{
		ID:       c.GUID.String(),
		CaseIDs:  c.CaseIDs,
		Label:    c.Label,
		Clock:    clockJSON,
		Deleted:  c.Deleted,
		Verified: c.Verified,
	}

	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)):
		out.Level1 = json.RawMessage(trimmed)
	case text != "":
		out.Data = strings.Split(text, "\n")
	}

	if c.PartialSave != nil {
		out.PartialSave = &api.PartialSave{
			Mode: c.PartialSave.Mode,
			Field: api.PartialSaveField{
				Name:              c.PartialSave.Field.Name,
				LevelKey:          c.PartialSave.Field.LevelKey,
				RecordOccurrence:  c.PartialSave.Field.RecordOccurrence,
				ItemOccurrence:    c.PartialSave.Field.ItemOccurrence,
				SubitemOccurrence: c.PartialSave.Field.SubitemOccurrence,
			},
		}
	}
	return out, nil
}
