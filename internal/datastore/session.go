package datastore

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/syrinxlabs/syrinx/internal/errors"
)

// SessionState tracks where a session is in its lifecycle.
type SessionState int

const (
	// SessionCreated is the initial state after Begin, before any statement.
	SessionCreated SessionState = iota
	// SessionActive means at least one statement has run inside the session.
	SessionActive
	// SessionCommitted means every statement succeeded and the transaction committed.
	SessionCommitted
	// SessionRolledBack means the transaction was rolled back.
	SessionRolledBack
	// SessionClosed means all resources are released. Terminal state.
	SessionClosed
)

// String returns the state name for logs and errors.
func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionActive:
		return "active"
	case SessionCommitted:
		return "committed"
	case SessionRolledBack:
		return "rolled_back"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one scoped transactional unit of work. The lifecycle is
// Created -> Active -> (Committed | RolledBack) -> Closed; Close is
// guaranteed to release resources on every path, rolling back anything
// still pending. Sessions are not safe for concurrent use; each worker
// opens its own.
type Session struct {
	tx      *gorm.DB
	metrics *Metrics
	began   time.Time

	mu    sync.Mutex
	state SessionState
}

// Begin opens a new session bound to ctx. The transaction is started
// eagerly; the session stays in Created until the first statement runs.
func (ds *DataStore) Begin(ctx context.Context) (*Session, error) {
	if ds.db == nil {
		return nil, dbError(errors.NewStd("database connection is not initialized"), "begin_session", errors.PriorityHigh)
	}

	tx := ds.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		if isDatabaseLocked(tx.Error) {
			return nil, transientError(tx.Error, "begin_session", 0)
		}
		return nil, stateError(tx.Error, "begin_session", "transaction")
	}

	if ds.metrics != nil {
		ds.metrics.SessionOpened()
	}

	return &Session{
		tx:      tx,
		metrics: ds.metrics,
		began:   time.Now(),
		state:   SessionCreated,
	}, nil
}

// Tx returns the transaction handle for running statements. The first
// call moves the session from Created to Active. Returns nil once the
// session has left the writable states; callers treat that as a bug.
func (s *Session) Tx() *gorm.DB {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case SessionCreated:
		s.state = SessionActive
		return s.tx
	case SessionActive:
		return s.tx
	default:
		return nil
	}
}

// State reports the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Commit commits the transaction. Valid only from Created (empty
// session) or Active; any other state is a lifecycle violation.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionCreated && s.state != SessionActive {
		return s.invalidTransition("commit")
	}

	if err := s.tx.Commit().Error; err != nil {
		s.state = SessionRolledBack
		if s.metrics != nil {
			s.metrics.RecordTransaction("error")
		}
		switch {
		case isDatabaseLocked(err):
			return transientError(err, "commit_session", 0)
		case isDiskFull(err):
			return resourceError(err, "commit_session", "storage")
		case isDatabaseCorruption(err):
			return criticalError(err, "commit_session", "database_corruption")
		default:
			return stateError(err, "commit_session", "transaction")
		}
	}

	s.state = SessionCommitted
	if s.metrics != nil {
		s.metrics.RecordTransaction("committed")
		s.metrics.RecordTransactionDuration("commit", time.Since(s.began).Seconds())
	}
	return nil
}

// Rollback discards every statement run inside the session. Valid from
// Created or Active; a no-op error in any terminal state.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionCreated && s.state != SessionActive {
		return s.invalidTransition("rollback")
	}

	if err := s.tx.Rollback().Error; err != nil {
		s.state = SessionRolledBack
		return stateError(err, "rollback_session", "transaction")
	}

	s.state = SessionRolledBack
	if s.metrics != nil {
		s.metrics.RecordTransaction("rolled_back")
	}
	return nil
}

// Close releases session resources. A still-pending transaction is
// rolled back first, so abandoning a session can never leave a partial
// write visible. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case SessionClosed:
		return nil
	case SessionCreated, SessionActive:
		// Pending work is discarded on every exit path
		if err := s.tx.Rollback().Error; err != nil {
			getLogger().Error("Failed to roll back session during close",
				"state", s.state.String(),
				"error", err)
		}
		if s.metrics != nil {
			s.metrics.RecordTransaction("rolled_back")
		}
		s.state = SessionRolledBack
	}

	outcome := s.state.String()
	s.state = SessionClosed
	if s.metrics != nil {
		s.metrics.SessionClosed(outcome)
	}
	return nil
}

// invalidTransition builds the lifecycle violation error. Callers hold s.mu.
func (s *Session) invalidTransition(operation string) error {
	return errors.Newf("invalid session transition: cannot %s from state %s", operation, s.state).
		Component("datastore").
		Category(errors.CategoryState).
		Context("operation", operation).
		Context("session_state", s.state.String()).
		Build()
}

// WithSession runs fn inside a managed session: commit when fn returns
// nil, roll back when it returns an error or panics. Cleanup runs on
// every path; the fn error always wins over cleanup errors.
func (ds *DataStore) WithSession(ctx context.Context, fn func(*Session) error) error {
	sess, err := ds.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = sess.Close()
			panic(r)
		}
	}()

	if err := fn(sess); err != nil {
		if rbErr := sess.Rollback(); rbErr != nil {
			getLogger().Error("Rollback failed after session error",
				"rollback_error", rbErr,
				"session_error", err)
		}
		_ = sess.Close()
		return err
	}

	if err := sess.Commit(); err != nil {
		_ = sess.Close()
		return err
	}

	return sess.Close()
}
