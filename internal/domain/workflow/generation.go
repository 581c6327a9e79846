package workflow

// NewGenerationBuilder returns a builder configured with the invoice
// generation lifecycle:
//
//	IDLE -> VALIDATING -> BUILDING -> SUBMITTING (-> SUBMITTING)* -> LOCKING -> DONE
//
// FAIL moves any non-terminal state to FAILED.
func NewGenerationBuilder() *Builder {
	return NewBuilder().
		Permit(StateIdle, TriggerStart, StateValidating).
		Permit(StateValidating, TriggerBuild, StateBuilding).
		Permit(StateBuilding, TriggerSubmit, StateSubmitting).
		Permit(StateSubmitting, TriggerSubmitNext, StateSubmitting).
		Permit(StateSubmitting, TriggerLock, StateLocking).
		Permit(StateLocking, TriggerComplete, StateDone).
		PermitFromActive(TriggerFail, StateFailed)
}
