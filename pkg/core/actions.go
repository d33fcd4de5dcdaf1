package core

import "fmt"

// ActionKind identifies what a CallbackAction asks the caller to do
type ActionKind uint8

// Action kinds
const (
	// ActionPublish means an order's observable state changed
	ActionPublish ActionKind = iota + 1
	// ActionPopResting means an order must leave its ladder level
	ActionPopResting
)

// String returns kind as string
func (k ActionKind) String() string {
	switch k {
	case ActionPublish:
		return "PUBLISH"
	case ActionPopResting:
		return "POP_RESTING"
	default:
		return "UNKNOWN"
	}
}

// CallbackAction is one entry of the ordered command list every book
// operation returns. Side and Price are only meaningful for ActionPopResting.
type CallbackAction struct {
	Kind  ActionKind
	ID    string
	Side  Side
	Price int64
}

// Publish builds an ActionPublish for id
func Publish(id string) CallbackAction {
	return CallbackAction{Kind: ActionPublish, ID: id}
}

// PopResting builds an ActionPopResting for id resting on side at price
func PopResting(id string, side Side, price int64) CallbackAction {
	return CallbackAction{Kind: ActionPopResting, ID: id, Side: side, Price: price}
}

// String implements Stringer interface
func (a CallbackAction) String() string {
	if a.Kind == ActionPopResting {
		return fmt.Sprintf("PopResting(%s, %s, %d)", a.ID, a.Side, a.Price)
	}
	return fmt.Sprintf("Publish(%s)", a.ID)
}

// PublishedIDs returns the ids of Publish actions, deduplicated, in order of
// first emission.
func PublishedIDs(actions []CallbackAction) []string {
	seen := make(map[string]struct{}, len(actions))
	ids := make([]string, 0, len(actions))
	for _, a := range actions {
		if a.Kind != ActionPublish {
			continue
		}
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		ids = append(ids, a.ID)
	}
	return ids
}
