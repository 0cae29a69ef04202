// Package postgresstore implements durable.Store over PostgreSQL using
// pgx/v5 and a pgxpool connection pool. Three tables back the store:
// dueue_message, dueue_acknowledgement, and dueue_reservation.
package postgresstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tombailey/dueue/internal/queue"
)

const (
	messageTable         = "dueue_message"
	acknowledgementTable = "dueue_acknowledgement"
	reservationTable     = "dueue_reservation"
)

// Config holds the connection parameters required to reach Postgres.
type Config struct {
	Host     string
	Port     uint16
	User     string
	Password string
	Database string
}

// dsn assembles a postgres:// connection string from the config.
func (c Config) dsn() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

// Store is a durable.Store backed by a pgxpool.Pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates the connection pool, verifies connectivity, and ensures the
// backing schema exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	s := &Store{pool: pool}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + messageTable + ` (
			id bigint PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
			queue_name text NOT NULL,
			value bytea NOT NULL,
			expiry bigint NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + acknowledgementTable + ` (
			id bigint PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
			message_id bigint NOT NULL REFERENCES ` + messageTable + ` (id) ON DELETE CASCADE,
			subscriber_id text NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + reservationTable + ` (
			id bigint PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
			message_id bigint NOT NULL REFERENCES ` + messageTable + ` (id) ON DELETE CASCADE,
			subscriber_id text NOT NULL,
			until bigint NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Close shuts down the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Initialize ensures the backing schema exists, purges already-expired
// messages, then loads the remaining snapshot. Messages are loaded ordered
// by id ASC (insertion-stable), not by expiry, so that next() sees insertion
// order after a restart.
func (s *Store) Initialize(ctx context.Context) (map[string]*queue.MessageQueue, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM `+messageTable+` WHERE expiry < $1`, time.Now().UTC().UnixMilli()); err != nil {
		return nil, fmt.Errorf("purge expired messages: %w", err)
	}

	queues, idToQueueName, err := s.loadMessages(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.attachAcknowledgements(ctx, queues, idToQueueName); err != nil {
		return nil, err
	}

	if err := s.attachReservations(ctx, queues, idToQueueName); err != nil {
		return nil, err
	}

	return queues, nil
}

func (s *Store) loadMessages(ctx context.Context) (map[string]*queue.MessageQueue, map[int64]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, queue_name, value, expiry FROM `+messageTable+` ORDER BY id ASC`)
	if err != nil {
		return nil, nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	queues := make(map[string]*queue.MessageQueue)
	idToQueueName := make(map[int64]string)

	for rows.Next() {
		var (
			id        int64
			queueName string
			value     []byte
			expiry    int64
		)
		if err := rows.Scan(&id, &queueName, &value, &expiry); err != nil {
			return nil, nil, fmt.Errorf("load messages scan: %w", err)
		}

		q, ok := queues[queueName]
		if !ok {
			q = queue.NewMessageQueue()
			queues[queueName] = q
		}
		q.Append(&queue.Message{
			ID:     strconv.FormatInt(id, 10),
			Value:  value,
			Expiry: time.UnixMilli(expiry).UTC(),
		})
		idToQueueName[id] = queueName
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("load messages rows: %w", err)
	}
	return queues, idToQueueName, nil
}

func (s *Store) attachAcknowledgements(ctx context.Context, queues map[string]*queue.MessageQueue, idToQueueName map[int64]string) error {
	rows, err := s.pool.Query(ctx, `SELECT message_id, subscriber_id FROM `+acknowledgementTable)
	if err != nil {
		return fmt.Errorf("load acknowledgements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			messageID    int64
			subscriberID string
		)
		if err := rows.Scan(&messageID, &subscriberID); err != nil {
			return fmt.Errorf("load acknowledgements scan: %w", err)
		}
		queueName, ok := idToQueueName[messageID]
		if !ok {
			continue
		}
		q := queues[queueName]
		q.Statuses[queue.StatusKey{SubscriberID: subscriberID, MessageID: strconv.FormatInt(messageID, 10)}] = queue.Entry{
			Status: queue.Acknowledged,
		}
	}
	return rows.Err()
}

func (s *Store) attachReservations(ctx context.Context, queues map[string]*queue.MessageQueue, idToQueueName map[int64]string) error {
	rows, err := s.pool.Query(ctx, `SELECT message_id, subscriber_id, until FROM `+reservationTable)
	if err != nil {
		return fmt.Errorf("load reservations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			messageID    int64
			subscriberID string
			until        int64
		)
		if err := rows.Scan(&messageID, &subscriberID, &until); err != nil {
			return fmt.Errorf("load reservations scan: %w", err)
		}
		queueName, ok := idToQueueName[messageID]
		if !ok {
			continue
		}
		q := queues[queueName]
		q.Statuses[queue.StatusKey{SubscriberID: subscriberID, MessageID: strconv.FormatInt(messageID, 10)}] = queue.Entry{
			Status: queue.Reserved,
			Until:  time.UnixMilli(until).UTC(),
		}
	}
	return rows.Err()
}

// Add inserts a message and returns it with the backend-assigned id.
func (s *Store) Add(ctx context.Context, queueName string, value []byte, expiry time.Time) (*queue.Message, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+messageTable+` (queue_name, value, expiry) VALUES ($1, $2, $3) RETURNING id`,
		queueName, value, expiry.UTC().UnixMilli(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return &queue.Message{
		ID:     strconv.FormatInt(id, 10),
		Value:  value,
		Expiry: expiry,
	}, nil
}

// Acknowledge inserts an ack record and deletes any reservation for the
// same message, both within one transaction.
func (s *Store) Acknowledge(ctx context.Context, subscriberID, messageID string) error {
	id, err := strconv.ParseInt(messageID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse message id: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin acknowledge tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+acknowledgementTable+` (message_id, subscriber_id) VALUES ($1, $2)`,
		id, subscriberID,
	); err != nil {
		return fmt.Errorf("insert acknowledgement: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM `+reservationTable+` WHERE message_id = $1`, id); err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit acknowledge tx: %w", err)
	}
	return nil
}

// Reserve records a reservation. Not called by the current engine; kept for
// interface completeness.
func (s *Store) Reserve(ctx context.Context, subscriberID, messageID string, until time.Time) error {
	id, err := strconv.ParseInt(messageID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse message id: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+reservationTable+` (message_id, subscriber_id, until) VALUES ($1, $2, $3)`,
		id, subscriberID, until.UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// Remove deletes the message; dependent ack/reservation rows cascade via
// ON DELETE CASCADE.
func (s *Store) Remove(ctx context.Context, messageID string) error {
	id, err := strconv.ParseInt(messageID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse message id: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM `+messageTable+` WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}
