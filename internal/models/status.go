package models

// itemTransitions is the allowed-edge table for order item statuses.
// SERVED and CANCELLED have no outgoing edges.
var itemTransitions = map[string][]string{
	ItemStatusPending:   {ItemStatusPreparing, ItemStatusPrepared, ItemStatusServed, ItemStatusCancelled},
	ItemStatusPreparing: {ItemStatusPrepared, ItemStatusServed, ItemStatusCancelled},
	ItemStatusPrepared:  {ItemStatusServed, ItemStatusCancelled},
	ItemStatusServed:    {},
	ItemStatusCancelled: {},
}

// CanTransitionItem reports whether an order item may move from one status
// to another.
func CanTransitionItem(from, to string) bool {
	for _, next := range itemTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidItemStatus reports whether s is a known order item status.
func IsValidItemStatus(s string) bool {
	_, ok := itemTransitions[s]
	return ok
}

// IsValidSessionStatus reports whether s is a known session status.
func IsValidSessionStatus(s string) bool {
	switch s {
	case SessionStatusOpen, SessionStatusBilled, SessionStatusPaid,
		SessionStatusCancelled, SessionStatusVoid:
		return true
	}
	return false
}

// IsValidBatchStatus reports whether s is a known batch status.
func IsValidBatchStatus(s string) bool {
	switch s {
	case BatchStatusPending, BatchStatusInProgress, BatchStatusReady, BatchStatusServed:
		return true
	}
	return false
}

// IsTerminalSessionStatus reports whether a session in status s can never
// change again.
func IsTerminalSessionStatus(s string) bool {
	return s == SessionStatusPaid || s == SessionStatusCancelled || s == SessionStatusVoid
}

// IsValidPaymentMethod reports whether m is a known payment method.
func IsValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodUPI,
		PaymentMethodOnline, PaymentMethodOther:
		return true
	}
	return false
}

// IsValidChannel reports whether c is a known session channel.
func IsValidChannel(c string) bool {
	switch c {
	case ChannelDineIn, ChannelOnlineOwn, ChannelUberEats:
		return true
	}
	return false
}

// DeriveBatchStatus recomputes a batch status from its items' statuses.
// Cancelled items are ignored; if every item is cancelled the prior status
// is kept. The derivation is always a full recompute so it cannot drift.
func DeriveBatchStatus(itemStatuses []string, current string) string {
	active := 0
	served := 0
	readyOrServed := 0
	inProgress := 0

	for _, s := range itemStatuses {
		if s == ItemStatusCancelled {
			continue
		}
		active++
		switch s {
		case ItemStatusServed:
			served++
			readyOrServed++
		case ItemStatusPrepared:
			readyOrServed++
			inProgress++
		case ItemStatusPreparing:
			inProgress++
		}
	}

	if active == 0 {
		return current
	}
	switch {
	case served == active:
		return BatchStatusServed
	case readyOrServed == active:
		return BatchStatusReady
	case inProgress > 0:
		return BatchStatusInProgress
	default:
		return BatchStatusPending
	}
}
