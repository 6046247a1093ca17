package store

import "github.com/Afonso75/QZeroN-sub002/internal/models"

// Automatic transitions applied by the call engine and the sweepers. Staff actions only need
// the ticket to exist and are not listed here.
const (
	ActionCall         = "call"
	ActionSkip         = "skip"
	ActionExpire       = "expire"
	ActionAutoComplete = "auto_complete"
)

var transitionMap = map[string][]string{
	ActionCall:         {models.StatusWaiting},
	ActionSkip:         {models.StatusWaiting, models.StatusCalled},
	ActionExpire:       {models.StatusWaiting, models.StatusCalled, models.StatusServing},
	ActionAutoComplete: {models.StatusServing},
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}
