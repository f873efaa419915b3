package cadence

// Stage is one named point in the collection cadence.
type Stage string

const (
	StageReminder Stage = "reminder"  // 3 days before due
	StageDueToday Stage = "due_today" // on the due date
	StageOverdue  Stage = "overdue"   // 3 days after due
	StageNotice   Stage = "notice"    // 5 days after due, pre-legal notice
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// rank orders priorities for dispatch; higher first.
func (p Priority) rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Rule is one row of the cadence table. OffsetDays is signed "days after
// due date": idealSendDate = dueDate + OffsetDays.
type Rule struct {
	OffsetDays int
	Stage      Stage
	Priority   Priority
}
