package domain

// Difficulty labels a problem. The generation oracle is prompted with one
// of these values and echoes it back in the Problem it produces.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ProblemExample is one worked input/output pair shown with a problem.
type ProblemExample struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation,omitempty"`
}

// Problem is a coding exercise shared between the two peers. Problems are
// immutable once produced; a regeneration replaces the whole value.
type Problem struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Difficulty  Difficulty       `json:"difficulty"`
	Tags        []string         `json:"tags"`
	Examples    []ProblemExample `json:"examples"`
	StarterCode string           `json:"starterCode"`
}

// ExecutionResult is the evaluation oracle's verdict on a code submission.
// Replaced wholesale by each new evaluation.
type ExecutionResult struct {
	Passed          bool   `json:"passed"`
	Output          string `json:"output"`
	Error           string `json:"error,omitempty"`
	Feedback        string `json:"feedback"`
	TestCasesPassed int    `json:"testCasesPassed"`
	TotalTestCases  int    `json:"totalTestCases"`
}

// Sender identifies the origin of a chat entry.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderRemote Sender = "remote"
	SenderSystem Sender = "system"
)

// ChatEntry is one message in the session transcript. Entries are append
// only; ordering is local arrival order. System entries are local notices
// and never leave the peer that produced them.
type ChatEntry struct {
	ID        string `json:"id"`
	Sender    Sender `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}
