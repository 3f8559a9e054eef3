package orders

import (
	"github.com/localstall/stallmarket-backend/pkg/enums"
)

// Party identifies which side of an order an actor is on.
type Party uint8

const (
	PartyBuyer Party = 1 << iota
	PartySeller
	PartyAdmin
)

type transition struct {
	from enums.OrderStatus
	to   enums.OrderStatus
}

// allowedTransitions is the complete order state machine. Anything missing is
// rejected as an invalid transition.
var allowedTransitions = map[transition]Party{
	{enums.OrderStatusNewOrder, enums.OrderStatusConfirmed}:  PartySeller,
	{enums.OrderStatusNewOrder, enums.OrderStatusCancelled}:  PartySeller | PartyBuyer,
	{enums.OrderStatusConfirmed, enums.OrderStatusCompleted}: PartySeller | PartyBuyer,
	{enums.OrderStatusConfirmed, enums.OrderStatusCancelled}: PartySeller,
}

// CanTransition reports whether from → to is part of the state machine.
func CanTransition(from, to enums.OrderStatus) bool {
	_, ok := allowedTransitions[transition{from, to}]
	return ok
}

// PermittedFor reports whether any of the actor's parties may trigger from → to.
// Admins may trigger every valid transition.
func PermittedFor(from, to enums.OrderStatus, parties Party) bool {
	allowed, ok := allowedTransitions[transition{from, to}]
	if !ok {
		return false
	}
	if parties&PartyAdmin != 0 {
		return true
	}
	return allowed&parties != 0
}

// NextStatuses lists the statuses reachable from s by the given parties.
func NextStatuses(s enums.OrderStatus, parties Party) []enums.OrderStatus {
	var out []enums.OrderStatus
	for _, to := range []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusCompleted,
		enums.OrderStatusCancelled,
	} {
		if PermittedFor(s, to, parties) {
			out = append(out, to)
		}
	}
	return out
}
