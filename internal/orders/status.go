package orders

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPreparing Status = "preparing"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Edges the supplier drives. draft -> preparing only happens through Submit,
// and cancellation is decided by the CancelPolicy.
var validNext = map[Status]map[Status]bool{
	StatusDraft:     {},
	StatusPreparing: {StatusInTransit: true},
	StatusInTransit: {StatusDelivered: true},
	StatusDelivered: {StatusInTransit: true},
	StatusCancelled: {},
}

var cancellable = map[Status]bool{
	StatusDraft:     true,
	StatusPreparing: true,
	StatusInTransit: true,
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func CanCancel(from Status) bool {
	return cancellable[from]
}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusDraft, StatusPreparing, StatusInTransit, StatusDelivered, StatusCancelled:
		return st, true
	}
	return "", false
}

// CancelPolicy decides who may move an order into cancelled.
type CancelPolicy func(o *Order, actor Actor) bool

// DenyCancel authorizes nobody.
func DenyCancel(*Order, Actor) bool { return false }

// PartiesMayCancel lets either trading party cancel before delivery.
func PartiesMayCancel(o *Order, actor Actor) bool { return o.IsParty(actor) }

// CancelPolicyByName maps a config value to a policy.
func CancelPolicyByName(name string) (CancelPolicy, bool) {
	switch name {
	case "", "none":
		return DenyCancel, true
	case "parties":
		return PartiesMayCancel, true
	}
	return nil, false
}
