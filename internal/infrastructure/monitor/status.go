package monitor

import "time"

// Status is the last observed health of every probed dependency.
type Status struct {
	Services   map[string]bool `json:"services"`
	OutboxSize int             `json:"outbox_size"`
	LastCheck  time.Time       `json:"last_check"`
}

// Online reports whether every probe passed on the last check.
func (s Status) Online() bool {
	if s.LastCheck.IsZero() {
		return false
	}
	for _, ok := range s.Services {
		if !ok {
			return false
		}
	}
	return true
}
