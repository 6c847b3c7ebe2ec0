package admin

// Flow is a pending multi-step admin prompt.  Flows live in their own
// session table, separate from the funnel, so an operator who is also a
// visitor keeps both states independently.
type Flow int

const (
	FlowNone Flow = iota
	FlowAwaitRegion
	FlowAwaitURL
	FlowAwaitBroadcast
)

func (f Flow) String() string {
	switch f {
	case FlowAwaitRegion:
		return "await_region"
	case FlowAwaitURL:
		return "await_url"
	case FlowAwaitBroadcast:
		return "await_broadcast"
	default:
		return "none"
	}
}

// Pending is the per-operator flow state.
type Pending struct {
	Flow   Flow
	Region string // set once the region prompt is answered
}
