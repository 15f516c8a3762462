package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/tilinna/clock"

	"github.com/atlassian/galerasync/pkg/cluster"
	"github.com/atlassian/galerasync/pkg/util"
)

const (
	// DefaultMembershipKey is the Galera global variable holding the cluster membership.
	DefaultMembershipKey = "wsrep_cluster_address"

	defaultRetryInterval = 1 * time.Second
)

// ErrInvalidMembershipKey is returned when the membership key is not a valid variable name.
var ErrInvalidMembershipKey = errors.New("invalid membership key")

var membershipKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Applier pushes a membership into the live configuration of the data store.
type Applier interface {
	// Apply sets the membership to snapshot.  It does not retry, a failure is returned to the caller.
	Apply(ctx context.Context, snapshot cluster.Snapshot) error
}

// Store holds a connection to a Galera node.  It is not safe for concurrent use, it is expected to have a single
// owner.
type Store struct {
	logger logrus.FieldLogger
	db     *sql.DB
	conn   *sql.Conn
	key    string
	query  string
}

var _ Applier = (*Store)(nil)

type options struct {
	membershipKey  string
	backoffFactory util.BackoffFactory
	open           func(cfg *mysql.Config) (*sql.DB, error)
}

// Option configures Connect.
type Option func(*options)

// WithMembershipKey sets the global variable updated by Apply.  Defaults to DefaultMembershipKey.
func WithMembershipKey(key string) Option {
	return func(o *options) {
		o.membershipKey = key
	}
}

// WithBackoff sets the policy used between connection attempts.  Defaults to one attempt per second, forever.
func WithBackoff(factory util.BackoffFactory) Option {
	return func(o *options) {
		o.backoffFactory = factory
	}
}

func openMySQL(cfg *mysql.Config) (*sql.DB, error) {
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// Connect establishes a connection to the server described by target (see ParseTarget).  It blocks until a
// connection is established, waiting between attempts according to the backoff policy.  With the default policy it
// only returns an error if ctx is canceled, or the target or options are invalid.
func Connect(ctx context.Context, logger logrus.FieldLogger, target string, opts ...Option) (*Store, error) {
	o := &options{
		membershipKey:  DefaultMembershipKey,
		backoffFactory: util.NewBackoffFactory(1.0, 0, 0, defaultRetryInterval, defaultRetryInterval, 0),
		open:           openMySQL,
	}
	for _, opt := range opts {
		opt(o)
	}

	if !membershipKeyPattern.MatchString(o.membershipKey) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMembershipKey, o.membershipKey)
	}

	cfg, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}

	logger = logger.WithFields(logrus.Fields{
		"addr": cfg.Addr,
		"user": cfg.User,
	})

	db, err := o.open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	conn, err := waitForConn(ctx, logger, db, o.backoffFactory())
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("MySQL connection successfully established")

	return &Store{
		logger: logger,
		db:     db,
		conn:   conn,
		key:    o.membershipKey,
		query:  fmt.Sprintf("SET @@global.%s = ?", o.membershipKey),
	}, nil
}

func waitForConn(ctx context.Context, logger logrus.FieldLogger, db *sql.DB, b backoff.BackOff) (*sql.Conn, error) {
	for attempt := 1; ; attempt++ {
		conn, err := db.Conn(ctx)
		if err == nil {
			if err = conn.PingContext(ctx); err == nil {
				return conn, nil
			}
			_ = conn.Close()
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		next := b.NextBackOff()
		if next == backoff.Stop {
			return nil, fmt.Errorf("giving up connecting after %d attempts: %w", attempt, err)
		}

		logger.WithError(err).WithField("attempt", attempt).Info("Waiting for MySQL server to become available")

		timer := clock.NewTimer(ctx, next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Apply executes SET @@global.<key> = ? with snapshot as the parameter, on the held connection.  If the connection
// turns out to be broken it is released, and the next call uses a new one from the pool.
func (s *Store) Apply(ctx context.Context, snapshot cluster.Snapshot) error {
	if s.conn == nil {
		conn, err := s.db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("acquiring connection: %w", err)
		}
		s.logger.Info("Acquired new MySQL connection")
		s.conn = conn
	}

	if _, err := s.conn.ExecContext(ctx, s.query, snapshot.String()); err != nil {
		if isBrokenConn(err) {
			s.releaseConn()
		}
		return fmt.Errorf("setting %s: %w", s.key, err)
	}
	return nil
}

// Close releases the held connection and closes the pool.
func (s *Store) Close() error {
	s.releaseConn()
	return s.db.Close()
}

func (s *Store) releaseConn() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func isBrokenConn(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, mysql.ErrInvalidConn)
}
