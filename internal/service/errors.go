package service

import "errors"

// Commit and delete outcomes. Every one of them leaves the session editable.
var (
	ErrValidation       = errors.New("habit is incomplete")
	ErrQuotaExceeded    = errors.New("notification limit reached")
	ErrScheduling       = errors.New("could not schedule reminders")
	ErrPersistence      = errors.New("could not save habit")
	ErrPermissionDenied = errors.New("notifications are not allowed")
	ErrNoDraft          = errors.New("no habit is being edited")
	ErrHabitNotFound    = errors.New("habit not found")
)

// outcome maps an error to the metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, ErrScheduling):
		return "scheduling"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrPermissionDenied):
		return "permission"
	default:
		return "other"
	}
}
