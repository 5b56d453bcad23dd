package models

// QuestionPayload is the complete result of one generation request.
// SolutionImage is raw PNG; encoding it for transport is the caller's job.
type QuestionPayload struct {
	ID            string           `json:"id"`
	Kind          QuestionKind     `json:"kind"`
	Prompt        string           `json:"prompt"`
	Parameters    *WallParameters  `json:"parameters"`
	Solution      *ThermalSolution `json:"solution"`
	SolutionImage []byte           `json:"-"`
	Seed          int64            `json:"seed"`
}
