package updates

import (
	"strings"

	"edgesched/pkg/schedtime"
)

// validate checks req field by field and returns the first failure.
// Schedules in all (other than selfID and canceled ones) must not share the
// name.
func validate(v *schedtime.Value, req Request, all []Schedule, selfID int64) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return &FieldError{Field: "name", Reason: "Name is required"}
	}
	for _, s := range all {
		if s.ID != selfID && s.Status != StatusCanceled && strings.EqualFold(s.Name, name) {
			return &FieldError{Field: "name", Reason: "Name is already used by schedule " + itoa(s.ID)}
		}
	}

	switch req.Type {
	case TypeUpdate:
		if strings.TrimSpace(req.Version) == "" {
			return &FieldError{Field: "version", Reason: "Version is required for an update"}
		}
	case TypeRollback:
	default:
		return &FieldError{Field: "type", Reason: "Type must be update or rollback"}
	}

	if len(req.GroupIDs) == 0 {
		return &FieldError{Field: "environment_group_ids", Reason: "Select at least one environment group"}
	}
	for _, id := range req.GroupIDs {
		if id <= 0 {
			return &FieldError{Field: "environment_group_ids", Reason: "Environment group ids must be positive"}
		}
	}

	if r := v.Validate(req.ScheduledTime); !r.Valid() {
		return &FieldError{Field: "scheduled_time", Reason: r.Reason, Err: r.Err()}
	}
	return nil
}
