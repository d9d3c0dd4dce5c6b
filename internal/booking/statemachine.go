package booking

// Action is a lifecycle operation applied to an existing booking.
type Action string

const (
	ActionConfirm    Action = "confirm"
	ActionCancel     Action = "cancel"
	ActionComplete   Action = "complete"
	ActionReschedule Action = "reschedule"
)

// actionCreate labels the creation event; it is not a transition on an existing booking.
const actionCreate = "create"

var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionConfirm:    StatusConfirmed,
		ActionCancel:     StatusCancelled,
		ActionReschedule: StatusPending,
	},
	StatusConfirmed: {
		ActionCancel:     StatusCancelled,
		ActionComplete:   StatusCompleted,
		ActionReschedule: StatusConfirmed,
	},
}

// Next returns the status reached by applying a to a booking in from.
// Completed and cancelled bookings accept no action.
func Next(from Status, a Action) (Status, error) {
	if to, ok := transitions[from][a]; ok {
		return to, nil
	}
	return "", ErrInvalidTransition.WithDetail("cannot %s a %s booking", a, from)
}
