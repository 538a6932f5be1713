package domain

// WorkflowState is one step of the per-request processing pipeline.
type WorkflowState string

const (
	StateInit         WorkflowState = "init"
	StateClassify     WorkflowState = "classify"
	StateValidatePre  WorkflowState = "validate_pre"
	StateLoadSLM      WorkflowState = "load_slm"
	StateExecute      WorkflowState = "execute"
	StateValidatePost WorkflowState = "validate_post"
	StateLog          WorkflowState = "log"
	StateReturn       WorkflowState = "return"
	StateError        WorkflowState = "error"
)

// HappyPath is the ordered sequence of states a successful request visits after INIT.
var HappyPath = []WorkflowState{
	StateClassify,
	StateValidatePre,
	StateLoadSLM,
	StateExecute,
	StateValidatePost,
	StateLog,
	StateReturn,
}

// IsTerminal reports whether no further unforced transition is allowed from s.
func (s WorkflowState) IsTerminal() bool {
	return s == StateReturn || s == StateError
}

// Next returns the successor of s on the happy path.
func (s WorkflowState) Next() (WorkflowState, bool) {
	if s == StateInit {
		return StateClassify, true
	}
	for i, st := range HappyPath {
		if st == s && i+1 < len(HappyPath) {
			return HappyPath[i+1], true
		}
	}
	return "", false
}

func (s WorkflowState) String() string {
	return string(s)
}
