package purchasing

// manualTransitions lists status changes an actor may request directly.
// Receiving drives ordered/partially_received to partially_received/completed.
var manualTransitions = map[Status]map[Status]struct{}{
	StatusDraft:   {StatusOrdered: {}, StatusCancelled: {}},
	StatusOrdered: {StatusCancelled: {}},
}

// CheckTransition validates a requested status change.
func CheckTransition(po PurchaseOrder, to Status) error {
	if !to.Valid() {
		return ErrInvalidStatus
	}
	next, ok := manualTransitions[po.Status]
	if !ok {
		return ErrInvalidTransition
	}
	if _, ok := next[to]; !ok {
		return ErrInvalidTransition
	}
	if to == StatusCancelled && po.AnyReceived() {
		return ErrInvalidTransition
	}
	return nil
}

// statusAfterReceipt derives the status once received quantities are updated.
func statusAfterReceipt(po PurchaseOrder) Status {
	if po.FullyReceived() {
		return StatusCompleted
	}
	return StatusPartiallyReceived
}
