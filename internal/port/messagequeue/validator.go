package messagequeue

import (
	"encoding/json"
	"fmt"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation
// (future-proof for new message types).
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	var (
		userID int64
		action string
	)
	switch subject {
	case SubjectProfileChanged:
		var p ProfileChangedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		userID, action = p.UserID, p.Action
	case SubjectPhotoChanged:
		var p PhotoChangedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		userID, action = p.UserID, p.Action
	default:
		return nil
	}

	if userID <= 0 {
		return fmt.Errorf("schema validation failed for %s: user_id is required", subject)
	}
	switch action {
	case ActionCreated, ActionUpdated, ActionDeleted, ActionEvicted:
	default:
		return fmt.Errorf("schema validation failed for %s: unknown action %q", subject, action)
	}
	return nil
}
