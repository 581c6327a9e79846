package workflow

// Trigger is an event that moves a generation run between states
type Trigger string

const (
	TriggerStart      Trigger = "START"
	TriggerBuild      Trigger = "BUILD"
	TriggerSubmit     Trigger = "SUBMIT"
	TriggerSubmitNext Trigger = "SUBMIT_NEXT"
	TriggerLock       Trigger = "LOCK"
	TriggerComplete   Trigger = "COMPLETE"
	TriggerFail       Trigger = "FAIL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
