// Package uow scopes every request to exactly one database transaction.
package uow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/semsearch/semsearch/internal/shared"
)

// ErrScopeClosed is returned when a Scope is used after it left the Active state.
var ErrScopeClosed = errors.New("uow: scope is not active")

// ErrAborted asks the Manager to roll back without treating the outcome as a
// storage failure.
var ErrAborted = errors.New("uow: aborted")

// State tracks the lifecycle of a Scope.
type State int32

const (
	StateIdle State = iota
	StateActive
	StateCommitted
	StateRolledBack
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Querier is the subset of pgx used by repositories.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Observer receives unit-of-work outcomes.
type Observer interface {
	ObserveUnitOfWork(outcome string)
}

// Outcome labels reported to the Observer.
const (
	OutcomeCommitted    = "committed"
	OutcomeRolledBack   = "rolled_back"
	OutcomeBeginFailed  = "begin_failed"
	OutcomeCommitFailed = "commit_failed"
)

// Scope is one transaction owned by exactly one request.
type Scope struct {
	id uint64

	mu    sync.Mutex
	tx    pgx.Tx
	state State
}

// ID identifies the scope within its Manager.
func (s *Scope) ID() uint64 { return s.id }

// State returns the current lifecycle state.
func (s *Scope) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scope) active() (pgx.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return nil, ErrScopeClosed
	}
	return s.tx, nil
}

// Exec runs a statement inside the transaction.
func (s *Scope) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx, err := s.active()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return tx.Exec(ctx, sql, args...)
}

// Query runs a query inside the transaction.
func (s *Scope) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	tx, err := s.active()
	if err != nil {
		return nil, err
	}
	return tx.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query inside the transaction.
func (s *Scope) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	tx, err := s.active()
	if err != nil {
		return errRow{err: err}
	}
	return tx.QueryRow(ctx, sql, args...)
}

func (s *Scope) commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return ErrScopeClosed
	}
	if err := s.tx.Commit(ctx); err != nil {
		s.state = StateRolledBack
		return err
	}
	s.state = StateCommitted
	return nil
}

func (s *Scope) rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return nil
	}
	s.state = StateRolledBack
	return s.tx.Rollback(ctx)
}

func (s *Scope) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateReleased
	s.tx = nil
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// Options configures a Manager.
type Options struct {
	TxOptions pgx.TxOptions
	Logger    *slog.Logger
	Observer  Observer
}

// Manager hands out Scopes and guarantees each ends in exactly one commit or
// rollback followed by release.
type Manager struct {
	beginner Beginner
	opts     pgx.TxOptions
	logger   *slog.Logger
	observer Observer
	seq      atomic.Uint64
}

// NewManager constructs a Manager over beginner.
func NewManager(beginner Beginner, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{beginner: beginner, opts: opts.TxOptions, logger: logger, observer: opts.Observer}
}

// Do runs fn inside a fresh Scope. A nil return commits; anything else rolls
// back. Classified domain errors, context errors and ErrAborted are returned
// unchanged. Every other error, and any begin or commit failure, is logged
// and replaced by shared.ErrStorage. Panics roll back and are re-raised.
func (m *Manager) Do(ctx context.Context, fn func(ctx context.Context, s *Scope) error) error {
	tx, err := m.beginner.BeginTx(ctx, m.opts)
	if err != nil {
		m.observe(OutcomeBeginFailed)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		m.logger.Error("uow begin", slog.Any("error", err))
		return shared.ErrStorage
	}
	scope := &Scope{id: m.seq.Add(1), tx: tx, state: StateActive}
	defer scope.release()
	defer func() {
		if p := recover(); p != nil {
			m.rollback(ctx, scope)
			panic(p)
		}
	}()

	if err := fn(ctx, scope); err != nil {
		m.rollback(ctx, scope)
		return m.translate(scope, err)
	}

	if err := scope.commit(ctx); err != nil {
		m.observe(OutcomeCommitFailed)
		m.logger.Error("uow commit", slog.Uint64("scope", scope.id), slog.Any("error", err))
		return shared.ErrStorage
	}
	m.observe(OutcomeCommitted)
	return nil
}

func (m *Manager) rollback(ctx context.Context, scope *Scope) {
	m.observe(OutcomeRolledBack)
	if err := scope.rollback(context.WithoutCancel(ctx)); err != nil {
		m.logger.Warn("uow rollback", slog.Uint64("scope", scope.id), slog.Any("error", err))
	}
}

func (m *Manager) translate(scope *Scope, err error) error {
	switch {
	case errors.Is(err, ErrAborted),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		shared.Classified(err):
		return err
	}
	m.logger.Error("uow rolled back", slog.Uint64("scope", scope.id), slog.Any("error", err))
	return shared.ErrStorage
}

func (m *Manager) observe(outcome string) {
	if m.observer != nil {
		m.observer.ObserveUnitOfWork(outcome)
	}
}
