package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq" // Import pq driver.

	"github.com/gridsnake/engine/config"
	"github.com/gridsnake/engine/controller"
	"github.com/gridsnake/engine/rules"
	log "github.com/sirupsen/logrus"
)

const migrations = `
CREATE TABLE IF NOT EXISTS claims (
	room VARCHAR(255) NOT NULL,
	id VARCHAR(255) NOT NULL,
	token VARCHAR(255) NOT NULL,
	expiry TIMESTAMP NOT NULL,
	PRIMARY KEY (room, id)
);
CREATE TABLE IF NOT EXISTS snakes (
	room VARCHAR(255) NOT NULL,
	id VARCHAR(255) NOT NULL,
	value jsonb,
	updated timestamp default now(),
	PRIMARY KEY (room, id)
);
`

// NewSQLStore returns a new store using a postgres database.
func NewSQLStore(url string) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	if err = db.PingContext(ctx); err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx, migrations)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Store represents an SQL store.
type Store struct {
	db *sql.DB
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// transact is a transaction wrapper, helps avoid failed to close connections.
func (s *Store) transact(
	ctx context.Context, txFunc func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			if rErr := tx.Rollback(); rErr != nil {
				log.WithError(rErr).Error("rollback failed")
			}
			panic(p) // re-throw panic after Rollback
		} else if err != nil {
			// err is non-nil; don't change it
			if rErr := tx.Rollback(); rErr != nil {
				log.WithError(rErr).Error("rollback failed")
			}
		} else {
			err = tx.Commit() // err is nil; if Commit returns error update err
		}
	}()
	err = txFunc(tx)
	return err
}

// Claim takes the snake id for token, or refreshes it when token already
// holds it.
func (s *Store) Claim(ctx context.Context, room, id, token string) (string, error) {
	now := time.Now()
	expiry := now.Add(controller.ClaimExpiry)

	if token == "" {
		token = controller.NewToken()
	}

	var held string
	if err := s.transact(ctx, func(tx *sql.Tx) error {
		// Insert, or take over a row that is ours or expired. Anything else
		// is left alone and shows up as a different token below.
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO claims (room, id, token, expiry) VALUES ($1, $2, $3, $4)
		ON CONFLICT (room, id)
		DO UPDATE SET token=$3, expiry=$4
		WHERE claims.token=$3 OR claims.expiry < $5`,
			room, id, token, expiry, now,
		); err != nil {
			return err
		}
		r := tx.QueryRowContext(ctx,
			"SELECT token FROM claims WHERE room=$1 AND id=$2", room, id)
		if err := r.Scan(&held); err != nil {
			if err != sql.ErrNoRows {
				return err
			}
		}
		return nil
	}); err != nil {
		return "", err
	}

	if held == token {
		return token, nil
	}
	return "", controller.ErrIsClaimed
}

// Release drops the claim if token holds it.
func (s *Store) Release(ctx context.Context, room, id, token string) error {
	now := time.Now()
	return s.transact(ctx, func(tx *sql.Tx) error {
		r := tx.QueryRowContext(ctx,
			`SELECT token FROM claims WHERE room=$1 AND id=$2 AND expiry > $3`,
			room, id, now)

		var cur string
		if err := r.Scan(&cur); err != nil {
			if err == sql.ErrNoRows {
				_, err = tx.ExecContext(ctx,
					`DELETE FROM claims WHERE room=$1 AND id=$2`, room, id)
				return err
			}
			return err
		}
		if cur != token {
			return controller.ErrIsClaimed
		}

		_, err := tx.ExecContext(ctx,
			`DELETE FROM claims WHERE room=$1 AND id=$2 AND token=$3`, room, id, token)
		return err
	})
}

// PutSnake upserts the latest state of a snake.
func (s *Store) PutSnake(ctx context.Context, room string, st rules.SnakeState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snakes (room, id, value) VALUES ($1, $2, $3)
		ON CONFLICT (room, id) DO UPDATE SET value=$3, updated=now()`,
		room, st.ID, data,
	)
	return err
}

// RemoveSnake deletes a snake.
func (s *Store) RemoveSnake(ctx context.Context, room, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM snakes WHERE room=$1 AND id=$2`, room, id)
	return err
}

// GetSnake returns the latest state of one snake.
func (s *Store) GetSnake(ctx context.Context, room, id string) (rules.SnakeState, error) {
	r := s.db.QueryRowContext(ctx,
		`SELECT value FROM snakes WHERE room=$1 AND id=$2`, room, id)

	var data []byte
	if err := r.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return rules.SnakeState{}, controller.ErrNotFound
		}
		return rules.SnakeState{}, err
	}
	var st rules.SnakeState
	err := json.Unmarshal(data, &st)
	return st, err
}

// ListSnakes returns every snake of the room ordered by id.
func (s *Store) ListSnakes(ctx context.Context, room string) ([]rules.SnakeState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM snakes WHERE room=$1 ORDER BY id ASC`, room)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := []rules.SnakeState{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var st rules.SnakeState
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}
