package domain

// NFTStatus enumerates the sale lifecycle of an NFT.
type NFTStatus string

// Canonical NFT sale statuses. Cancelled is a declared value with no operation
// that reaches it.
const (
	NFTStatusPending   NFTStatus = "Pending"
	NFTStatusCompleted NFTStatus = "Completed"
	NFTStatusCancelled NFTStatus = "Cancelled"
)

// SwapStatus enumerates the lifecycle of a swap request.
type SwapStatus string

// Canonical swap request statuses. Accepted and Rejected are declared values
// with no operation that reaches them.
const (
	SwapStatusPending  SwapStatus = "Pending"
	SwapStatusAccepted SwapStatus = "Accepted"
	SwapStatusRejected SwapStatus = "Rejected"
)

// StateMachine lists the legal states of a status field and the transitions
// between them.
type StateMachine struct {
	Entity      EntityType
	Label       string
	Initial     string
	States      []string
	Transitions map[string][]string
}

// NFTLifecycle is the NFT sale state machine: Pending moves to Completed on purchase.
var NFTLifecycle = StateMachine{
	Entity:  EntityNFT,
	Label:   "nft",
	Initial: string(NFTStatusPending),
	States:  []string{string(NFTStatusPending), string(NFTStatusCompleted), string(NFTStatusCancelled)},
	Transitions: map[string][]string{
		string(NFTStatusPending): {string(NFTStatusCompleted)},
	},
}

// SwapLifecycle is the swap request state machine. No transition is exposed.
var SwapLifecycle = StateMachine{
	Entity:      EntitySwapRequest,
	Label:       "swap request",
	Initial:     string(SwapStatusPending),
	States:      []string{string(SwapStatusPending), string(SwapStatusAccepted), string(SwapStatusRejected)},
	Transitions: map[string][]string{},
}

// Valid reports whether state is a declared state.
func (m StateMachine) Valid(state string) bool {
	for _, s := range m.States {
		if s == state {
			return true
		}
	}
	return false
}

// CanTransition reports whether from may move to to. Staying in place is always allowed.
func (m StateMachine) CanTransition(from, to string) bool {
	if from == to {
		return m.Valid(from)
	}
	for _, next := range m.Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves state.
func (m StateMachine) Terminal(state string) bool {
	return len(m.Transitions[state]) == 0
}

// Purchasable reports whether the NFT may be bought.
func (s NFTStatus) Purchasable() bool { return s == NFTStatusPending }
