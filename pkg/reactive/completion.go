package reactive

// CompletionKind tags a Completion as either a clean finish or a failure.
type CompletionKind int

const (
	Finished CompletionKind = iota
	Failed
)

// Completion is the terminal signal a stage delivers at most once (§3.2).
type Completion struct {
	Kind CompletionKind
	Err  error
}

// FinishedCompletion builds a clean-finish completion.
func FinishedCompletion() Completion { return Completion{Kind: Finished} }

// FailedCompletion builds a failure completion wrapping err.
func FailedCompletion(err error) Completion { return Completion{Kind: Failed, Err: err} }

func (c Completion) IsFinished() bool { return c.Kind == Finished }
func (c Completion) IsFailed() bool   { return c.Kind == Failed }

func (c Completion) String() string {
	if c.IsFailed() {
		return "failed(" + c.Err.Error() + ")"
	}
	return "finished"
}
