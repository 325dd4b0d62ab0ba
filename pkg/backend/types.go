package backend

// TranscriptEntry is one committed line of the interview transcript.
type TranscriptEntry struct {
	Role      string `json:"role"` // agent | user
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at,omitempty"` // epoch ms
}

const (
	RoleAgent = "agent"
	RoleUser  = "user"
)

type SummaryRequest struct {
	Transcript            []TranscriptEntry `json:"transcript"`
	EndedBy               string            `json:"ended_by"`
	TargetDurationSeconds int               `json:"target_duration_seconds,omitempty"`
	ActualDurationSeconds int               `json:"actual_duration_seconds,omitempty"`
	TurnsTotal            int               `json:"turns_total"`
	TurnsUser             int               `json:"turns_user"`
	TurnsAI               int               `json:"turns_ai"`
}

type Scorecard struct {
	Communication      float64 `json:"communication"`
	Structure          float64 `json:"structure"`
	TechnicalDepth     float64 `json:"technical_depth"`
	BehavioralExamples float64 `json:"behavioral_examples"`
	ProblemSolving     float64 `json:"problem_solving"`
	Confidence         float64 `json:"confidence"`
}

type SessionMeta struct {
	EndedBy               string `json:"ended_by"`
	TargetDurationSeconds int    `json:"target_duration_seconds,omitempty"`
	ActualDurationSeconds int    `json:"actual_duration_seconds,omitempty"`
	TurnsTotal            int    `json:"turns_total,omitempty"`
	TurnsUser             int    `json:"turns_user,omitempty"`
	TurnsAI               int    `json:"turns_ai,omitempty"`
}

// Summary is the structured feedback produced at the end of an interview.
type Summary struct {
	Title             string      `json:"title,omitempty"`
	OverallSummary    string      `json:"overall_summary"`
	Scorecard         Scorecard   `json:"scorecard"`
	Strengths         []string    `json:"strengths"`
	Improvements      []string    `json:"improvements"`
	NextSteps         []string    `json:"next_steps"`
	SessionMeta       SessionMeta `json:"session_meta"`
	RedFlags          []string    `json:"red_flags,omitempty"`
	FollowUpQuestions []string    `json:"follow_up_questions,omitempty"`
	RoleAlignment     string      `json:"role_alignment,omitempty"`
	KeyQuotes         []string    `json:"key_quotes,omitempty"`
}
