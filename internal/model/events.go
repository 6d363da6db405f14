package model

import (
	"github.com/google/uuid"
)

// Domain events emitted by the rating consensus engine. They decouple
// the state machine from notification delivery: the engine hands them
// to a notifier port and never calls channel senders itself.

// RatingRecorded fires after a rating write commits.
type RatingRecorded struct {
	Event   *Event
	RaterID uuid.UUID
	RatedID uuid.UUID
	Rating  int
}

// ConsensusReached fires when an application transitions to
// both_rated.
type ConsensusReached struct {
	Event       *Event
	Application *EventApplication
}

// EventFullyRated fires when the last application of an event reaches
// both_rated and the event is archived through the consensus path.
type EventFullyRated struct {
	Event        *Event
	VolunteerIDs []uuid.UUID
}
