package transport

// CreateTaskRequest is posted by the Mini App. RemindAt is unix seconds;
// zero means one hour from now.
type CreateTaskRequest struct {
	Text     string   `json:"text"`
	Priority string   `json:"priority"`
	RemindAt int64    `json:"remindAt"`
	Tags     []string `json:"tags"`
}

// SnoozeRequest carries a delay such as "30m", "2h", "tomorrow" or "week".
type SnoozeRequest struct {
	Delay string `json:"delay"`
}

type MotivationRequest struct {
	Enabled bool `json:"enabled"`
}

// AssistantRequest asks the assistant to perform Action on Text. The text may
// also arrive nested as data.text.
type AssistantRequest struct {
	Action string `json:"action"`
	Text   string `json:"text"`
	Data   struct {
		Text string `json:"text"`
	} `json:"data"`
}

// Input returns whichever text field was set.
func (r AssistantRequest) Input() string {
	if r.Text != "" {
		return r.Text
	}
	return r.Data.Text
}

// SessionRequest exchanges a launch token for a session.
type SessionRequest struct {
	Token string `json:"token"`
}
