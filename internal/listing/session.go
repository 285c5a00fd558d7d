package listing

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/contracts"
	"github.com/yolodolo42/deployfi/internal/failure"
)

// Stage is a step of the listing workflow. Stages only move forward.
type Stage int

const (
	StageSelect Stage = iota
	StageApprove
	StageDeploy
)

func (s Stage) String() string {
	switch s {
	case StageSelect:
		return "select"
	case StageApprove:
		return "approve"
	case StageDeploy:
		return "deploy"
	default:
		return "unknown"
	}
}

var (
	ErrNoToken             = errors.New("no token selected")
	ErrApprovalRequired    = errors.New("router allowance not granted")
	ErrPresaleNotFinalized = errors.New("presale not finalized")
	ErrInvalidTransition   = errors.New("invalid stage transition")
	ErrStaleSession        = errors.New("session was reset")
)

// Token is the token being listed, with the per-version traits that drive
// the workflow's guards.
type Token struct {
	Address        common.Address
	Version        string
	ApprovalExempt bool
	LiquidityCall  bool
	PresaleGated   bool
}

// ResolveToken describes the token at addr created by the version factory.
// Whether it is actually presale-gated is decided later from its bytecode.
func ResolveToken(profile *chain.NetworkProfile, addr common.Address, version string) (Token, error) {
	f, err := contracts.Lookup(version, profile.ABIVariant)
	if err != nil {
		return Token{}, failure.Configuration("%v", err)
	}
	if f.Pool {
		return Token{}, failure.Configuration("%s factories create lending pools, not listable tokens", version)
	}
	return Token{
		Address:        addr,
		Version:        version,
		ApprovalExempt: f.ApprovalExempt,
		LiquidityCall:  f.LiquidityCall,
	}, nil
}

// Approval is the recorded outcome of the approval step.
type Approval struct {
	Granted bool
	Target  *big.Int
	TxHash  common.Hash
}

// Status is a snapshot of a session delivered to observers.
type Status struct {
	SessionID uuid.UUID
	Stage     Stage
	Token     *Token
	Approval  Approval
	Presale   *PresaleState
	CanDeploy bool
}

// Session is the explicit state machine of one listing: Select, then
// Approve, then Deploy. It is safe for concurrent use; observers are called
// after each change, outside the session lock.
type Session struct {
	mu        sync.Mutex
	id        uuid.UUID
	stage     Stage
	token     *Token
	approval  Approval
	presale   *PresaleState
	observers map[int]func(Status)
	nextObs   int
}

// NewSession starts an empty session in the Select stage.
func NewSession() *Session {
	return &Session{
		id:        uuid.New(),
		observers: make(map[int]func(Status)),
	}
}

// ID identifies the current incarnation of the session. It changes on Reset.
func (s *Session) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// OnChange registers fn for status updates and returns a function removing it.
func (s *Session) OnChange(fn func(Status)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.nextObs
	s.nextObs++
	s.observers[key] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, key)
	}
}

// Status returns the current snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Select chooses the token. It is only allowed in the Select stage.
func (s *Session) Select(tok Token) error {
	return s.update(uuid.Nil, func() error {
		if s.stage != StageSelect {
			return ErrInvalidTransition
		}
		t := tok
		s.token = &t
		s.approval = Approval{}
		s.presale = nil
		return nil
	})
}

// EnterApprove moves Select to Approve. It requires a selected token and is
// a no-op when already in Approve.
func (s *Session) EnterApprove() error {
	return s.update(uuid.Nil, func() error {
		switch {
		case s.token == nil:
			return ErrNoToken
		case s.stage == StageApprove:
			return nil
		case s.stage != StageSelect:
			return ErrInvalidTransition
		}
		s.stage = StageApprove
		return nil
	})
}

// Grant records a granted approval for the session incarnation id.
func (s *Session) Grant(id uuid.UUID, a Approval) error {
	return s.update(id, func() error {
		if s.stage != StageApprove {
			return ErrInvalidTransition
		}
		a.Granted = true
		s.approval = a
		return nil
	})
}

// ResetApproval clears the grant without leaving the Approve stage.
func (s *Session) ResetApproval() error {
	return s.update(uuid.Nil, func() error {
		if s.stage != StageApprove {
			return ErrInvalidTransition
		}
		s.approval = Approval{}
		return nil
	})
}

// SetPresale stores the latest presale state read for session incarnation id.
func (s *Session) SetPresale(id uuid.UUID, p PresaleState) error {
	return s.update(id, func() error {
		if s.token == nil {
			return ErrNoToken
		}
		s.presale = &p
		return nil
	})
}

// EnterDeploy moves Approve to Deploy. The allowance must be granted unless
// the token's version is exempt, and a presale-gated token must be
// finalized. It is a no-op when already in Deploy.
func (s *Session) EnterDeploy() error {
	return s.update(uuid.Nil, func() error {
		if s.stage == StageDeploy {
			return nil
		}
		return s.deployGuardLocked(true)
	})
}

// Reset returns to an empty Select stage under a new id. Results of actions
// started before the reset are rejected with ErrStaleSession.
func (s *Session) Reset() {
	_ = s.update(uuid.Nil, func() error {
		s.id = uuid.New()
		s.stage = StageSelect
		s.token = nil
		s.approval = Approval{}
		s.presale = nil
		return nil
	})
}

func (s *Session) deployGuardLocked(advance bool) error {
	switch {
	case s.token == nil:
		return ErrNoToken
	case s.stage != StageApprove:
		return ErrInvalidTransition
	case !s.token.ApprovalExempt && !s.approval.Granted:
		return ErrApprovalRequired
	case s.token.PresaleGated && (s.presale == nil || !s.presale.Finalized):
		return ErrPresaleNotFinalized
	}
	if advance {
		s.stage = StageDeploy
	}
	return nil
}

func (s *Session) statusLocked() Status {
	st := Status{
		SessionID: s.id,
		Stage:     s.stage,
		Approval:  s.approval,
	}
	if s.token != nil {
		t := *s.token
		st.Token = &t
	}
	if s.presale != nil {
		p := *s.presale
		st.Presale = &p
	}
	st.CanDeploy = s.stage == StageDeploy || s.deployGuardLocked(false) == nil
	return st
}

// update applies fn under the lock and notifies observers if it succeeded.
// A non-nil id must match the current incarnation.
func (s *Session) update(id uuid.UUID, fn func() error) error {
	s.mu.Lock()
	if id != uuid.Nil && id != s.id {
		s.mu.Unlock()
		return ErrStaleSession
	}
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	st := s.statusLocked()
	observers := make([]func(Status), 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(st)
	}
	return nil
}
