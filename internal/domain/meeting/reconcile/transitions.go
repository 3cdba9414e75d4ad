// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package reconcile

// State is a reconciliation step or terminal outcome.
type State string

const (
	StateCheckCredential State = "check_credential"
	StateLoadRecord      State = "load_record"
	StateValidateRecord  State = "validate_record"
	StateCheckAge        State = "check_age"
	StateVerifyRemote    State = "verify_remote"

	// Terminal states.
	StateLoggedOut State = "logged_out"
	StateNoMeeting State = "no_meeting"
	StateCleared   State = "cleared"
	StateKept      State = "kept"
	StateAdopted   State = "adopted"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	switch s {
	case StateLoggedOut, StateNoMeeting, StateCleared, StateKept, StateAdopted:
		return true
	}
	return false
}

// Reason qualifies StateCleared and StateKept.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonInvalid     Reason = "invalid"
	ReasonStale       Reason = "stale"
	ReasonCheckFailed Reason = "check_failed"
	ReasonClosed      Reason = "closed"
	ReasonLoadFailed  Reason = "load_failed"
	ReasonAborted     Reason = "aborted"
)

// Event is what a step observed.
type Event string

const (
	EvCredentialPresent Event = "credential_present"
	EvNoCredential      Event = "no_credential"
	EvRecordFound       Event = "record_found"
	EvNoRecord          Event = "no_record"
	EvLoadFailed        Event = "load_failed"
	EvRecordValid       Event = "record_valid"
	EvRecordInvalid     Event = "record_invalid"
	EvFresh             Event = "fresh"
	EvStale             Event = "stale"
	EvRemoteOpen        Event = "remote_open"
	EvRemoteClosed      Event = "remote_closed"
	EvCheckFailed       Event = "check_failed"
	EvCheckDeferred     Event = "check_deferred"
	EvCheckAborted      Event = "check_aborted"
)

// Transition is a single allowed edge. Clear marks edges that drop the
// persisted session and the recording notice.
type Transition struct {
	From   State
	Event  Event
	To     State
	Reason Reason
	Clear  bool
}

var transitionsTable = []Transition{
	{From: StateCheckCredential, Event: EvCredentialPresent, To: StateLoadRecord},
	{From: StateCheckCredential, Event: EvNoCredential, To: StateLoggedOut, Clear: true},

	{From: StateLoadRecord, Event: EvRecordFound, To: StateValidateRecord},
	{From: StateLoadRecord, Event: EvNoRecord, To: StateNoMeeting},
	{From: StateLoadRecord, Event: EvLoadFailed, To: StateNoMeeting, Reason: ReasonLoadFailed},

	{From: StateValidateRecord, Event: EvRecordValid, To: StateCheckAge},
	{From: StateValidateRecord, Event: EvRecordInvalid, To: StateCleared, Reason: ReasonInvalid, Clear: true},

	// Stale records are dropped without asking the server.
	{From: StateCheckAge, Event: EvFresh, To: StateVerifyRemote},
	{From: StateCheckAge, Event: EvStale, To: StateCleared, Reason: ReasonStale, Clear: true},

	{From: StateVerifyRemote, Event: EvRemoteOpen, To: StateAdopted},
	{From: StateVerifyRemote, Event: EvRemoteClosed, To: StateCleared, Reason: ReasonClosed, Clear: true},
	{From: StateVerifyRemote, Event: EvCheckFailed, To: StateCleared, Reason: ReasonCheckFailed, Clear: true},
	{From: StateVerifyRemote, Event: EvCheckDeferred, To: StateKept, Reason: ReasonCheckFailed},
	// A cancelled check is no verdict at all.
	{From: StateVerifyRemote, Event: EvCheckAborted, To: StateKept, Reason: ReasonAborted},
}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from State, ev Event) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}
