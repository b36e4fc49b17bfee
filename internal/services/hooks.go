package services

// mutationHooks run after a committed change that can alter a user's reports.
type mutationHooks []func(userID string)

// OnMutation registers fn to run after every committed change, used to drop
// cached reports.
func (h *mutationHooks) OnMutation(fn func(userID string)) {
	*h = append(*h, fn)
}

func (h mutationHooks) notify(userID string) {
	for _, fn := range h {
		fn(userID)
	}
}
