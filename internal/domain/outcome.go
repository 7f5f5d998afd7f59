package domain

// CatchOutcome is the terminal state of one pipeline run.
type CatchOutcome string

const (
	OutcomeConfirmed     CatchOutcome = "confirmed"
	OutcomeSkipped       CatchOutcome = "skipped"
	OutcomeLowConfidence CatchOutcome = "low_confidence"
	OutcomeDuplicate     CatchOutcome = "duplicate"
	OutcomeClaimed       CatchOutcome = "claimed_by_other"
	OutcomeNoReply       CatchOutcome = "no_reply"
	OutcomeUnknown       CatchOutcome = "unknown_species"
	OutcomeAbandoned     CatchOutcome = "abandoned"
)
