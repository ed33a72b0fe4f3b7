package service

import (
	"github.com/google/uuid"

	"github.com/rl1809/med-provenance/internal/core/domain"
	"github.com/rl1809/med-provenance/internal/port"
)

// Session carries one registration workflow through the state machine.
// A Session is not safe for concurrent use.
type Session struct {
	ID           uuid.UUID
	State        domain.RegistrationState
	Signer       port.SigningContext
	Confirmation *domain.Confirmation
	Result       *domain.VerifiedRecord
	Err          error
	History      []domain.RegistrationState
}

func NewSession() *Session {
	return &Session{
		ID:      uuid.New(),
		State:   domain.StateIdle,
		History: []domain.RegistrationState{domain.StateIdle},
	}
}

func (s *Session) transition(to domain.RegistrationState) {
	s.State = to
	s.History = append(s.History, to)
}

func (s *Session) fail(err error) error {
	s.Err = err
	s.transition(domain.StateError)
	return err
}
