package upload

// Predicate decides whether an item may undergo a transition in its current
// state. Predicates must not have side effects.
type Predicate func(*Item) bool

// AdmissionHook runs once for an eligible item immediately before it is
// enqueued. Stage-specific preparation belongs here, not in the Predicate.
type AdmissionHook func(*Item)

// Awaiting admits items that are pending the transition.
func Awaiting(item *Item) bool {
	return item != nil && item.State() == StatePending
}

// Stashed admits pending items that already hold a stash receipt.
func Stashed(item *Item) bool {
	return Awaiting(item) && item.Receipt() != nil
}

// All combines predicates; an item is eligible only if every predicate admits it.
func All(preds ...Predicate) Predicate {
	return func(item *Item) bool {
		if item == nil {
			return false
		}
		for _, p := range preds {
			if p != nil && !p(item) {
				return false
			}
		}
		return true
	}
}
