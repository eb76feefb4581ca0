package summary

import "context"

// Type selects the analysis the summarizer performs
type Type string

const (
	TypeMeeting         Type = "meeting"
	TypeActionItems     Type = "action_items"
	TypeKeyPoints       Type = "key_points"
	TypeSpeakerAnalysis Type = "speaker_analysis"
)

// ParseType validates a client-supplied summary type, defaulting to meeting
func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case TypeMeeting, TypeActionItems, TypeKeyPoints, TypeSpeakerAnalysis:
		return Type(s), true
	case "":
		return TypeMeeting, true
	default:
		return TypeMeeting, false
	}
}

// Request carries a full final-transcript snapshot to the summarizer
type Request struct {
	Text        string `json:"text"`
	SummaryType string `json:"summary_type"`
}

// ActionItem is a task extracted from the transcript
type ActionItem struct {
	Task             string `json:"task"`
	ResponsibleParty string `json:"responsible_party,omitempty"`
	Deadline         string `json:"deadline,omitempty"`
}

// SpeakerSummary is a per-speaker breakdown of the conversation
type SpeakerSummary struct {
	SpeakerID  int      `json:"speaker_id"`
	MainPoints []string `json:"main_points"`
}

// Result is a structured summary. A failed summarization still produces a
// Result with Error set, so the client can render the rest of its view.
type Result struct {
	Summary        string           `json:"summary,omitempty"`
	KeyPoints      []string         `json:"key_points,omitempty"`
	ActionItems    []ActionItem     `json:"action_items,omitempty"`
	Decisions      []string         `json:"decisions,omitempty"`
	NextSteps      []string         `json:"next_steps,omitempty"`
	SpeakerSummary []SpeakerSummary `json:"speaker_summary,omitempty"`
	Type           Type             `json:"type,omitempty"`
	RawResponse    string           `json:"raw_response,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// Client is the external summarization collaborator: a single
// request/response call, no streaming. Callers own rate limiting.
type Client interface {
	Summarize(ctx context.Context, text string, summaryType Type) (*Result, error)
}
