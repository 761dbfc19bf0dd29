package chat

// Phase is the step of the contact collection flow a session is in.
type Phase string

const (
	PhaseReady           Phase = "ready"
	PhaseWelcome         Phase = "welcome"
	PhaseCollectingName  Phase = "collecting_name"
	PhaseCollectingEmail Phase = "collecting_email"
	PhaseCollectingPhone Phase = "collecting_phone"
	PhaseComplete        Phase = "complete"
)

var phaseRank = map[Phase]int{
	PhaseReady:           0,
	PhaseWelcome:         1,
	PhaseCollectingName:  2,
	PhaseCollectingEmail: 3,
	PhaseCollectingPhone: 4,
	PhaseComplete:        5,
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	_, ok := phaseRank[p]
	return ok
}

// Collecting reports whether p is one of the contact field phases.
func (p Phase) Collecting() bool {
	return p == PhaseCollectingName || p == PhaseCollectingEmail || p == PhaseCollectingPhone
}

// Before reports whether p comes strictly earlier in the flow than other.
func (p Phase) Before(other Phase) bool {
	return phaseRank[p] < phaseRank[other]
}

func (p Phase) String() string { return string(p) }
