package domain

// MessageKind classifies outbound messages; it orders delivery when messages queue up.
type MessageKind string

const (
	MessageReminder  MessageKind = "reminder"
	MessageReply     MessageKind = "reply"
	MessageBroadcast MessageKind = "broadcast"
)

// Button is one inline keyboard button. Exactly one of URL, WebAppURL or CallbackData is set.
type Button struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	WebAppURL    string `json:"web_app_url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// OutboundMessage is a chat message addressed to a user.
type OutboundMessage struct {
	ChatID  int64       `json:"chat_id"`
	Text    string      `json:"text"`
	Kind    MessageKind `json:"kind"`
	Buttons [][]Button  `json:"buttons,omitempty"`
}

// JobQuery describes a job search request.
type JobQuery struct {
	Role     string `json:"role"`
	Location string `json:"location"`
}

// JobPosting is one job search hit.
type JobPosting struct {
	Title   string `json:"title"`
	Company string `json:"company"`
	URL     string `json:"url"`
}

// TaskSuggestion is the structured result of analysing or parsing task text.
type TaskSuggestion struct {
	Text             string   `json:"text"`
	Priority         Priority `json:"priority"`
	DueDate          string   `json:"due_date,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	EstimatedMinutes int      `json:"estimated_minutes,omitempty"`
	Analysis         string   `json:"analysis,omitempty"`
}
