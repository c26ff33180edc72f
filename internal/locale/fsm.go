// Package locale switches the active locale of an application and loads the
// catalogs produced by the update command, either from memory or over HTTP.
package locale

import "fmt"

// State is the loading state of a FetchController.
type State int

const (
	// StateIdle means no locale was selected yet.
	StateIdle State = iota
	// StateRequesting means a catalog request is in flight.
	StateRequesting
	// StateLoaded means the current locale has its catalog.
	StateLoaded
	// StateErrored means the last request failed. The previous locale, if
	// any, stays active.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateLoaded:
		return "loaded"
	case StateErrored:
		return "errored"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Event drives a state transition.
type Event int

const (
	// EventSelect switches to a locale whose catalog is already loaded.
	EventSelect Event = iota
	// EventRequest starts loading a catalog, superseding any request in
	// flight.
	EventRequest
	// EventLoaded delivers the catalog of the requested locale.
	EventLoaded
	// EventFailed reports that the request failed.
	EventFailed
)

func (e Event) String() string {
	switch e {
	case EventSelect:
		return "select"
	case EventRequest:
		return "request"
	case EventLoaded:
		return "loaded"
	case EventFailed:
		return "failed"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventSelect:  StateLoaded,
		EventRequest: StateRequesting,
	},
	StateRequesting: {
		EventSelect:  StateLoaded,
		EventRequest: StateRequesting,
		EventLoaded:  StateLoaded,
		EventFailed:  StateErrored,
	},
	StateLoaded: {
		EventSelect:  StateLoaded,
		EventRequest: StateRequesting,
	},
	StateErrored: {
		EventSelect:  StateLoaded,
		EventRequest: StateRequesting,
	},
}

// Next returns the state reached from s on e, or an error when the table
// has no such transition.
func Next(s State, e Event) (State, error) {
	if next, ok := transitions[s][e]; ok {
		return next, nil
	}
	return s, fmt.Errorf("locale: no transition from %s on %s", s, e)
}
