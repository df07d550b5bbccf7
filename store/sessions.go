package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/sharnoff/placenet"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for unknown session ids.
var ErrNotFound = errors.New("Session not found")

// Frame is a single Snapshot of a session, in serializable form.
type Frame struct {
	Epoch      int                    `json:"epoch"`
	Loss       float64                `json:"loss"`
	Accuracy   float64                `json:"accuracy"`
	Parameters map[string][][]float64 `json:"parameters"`
	Boundary   string                 `json:"boundary,omitempty"`
}

// Frames converts a History.
func Frames(h *placenet.History) []Frame {
	if h == nil {
		return nil
	}

	fs := make([]Frame, len(h.Epochs))
	for i := range fs {
		fs[i] = Frame{
			Epoch:      h.Epochs[i],
			Loss:       h.Loss[i],
			Accuracy:   h.Accuracy[i],
			Parameters: h.Params[i].Export(),
			Boundary:   h.Boundaries[i],
		}
	}

	return fs
}

// Session is the archived record of a training run.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LearningRate float64   `json:"learning_rate"`
	Epochs       int       `json:"epochs"`
	Mode         string    `json:"mode"`
	ReportEvery  int       `json:"report_every"`
	State        string    `json:"state"`
	Error        string    `json:"error,omitempty"`

	FinalLoss     float64 `json:"final_loss"`
	FinalAccuracy float64 `json:"final_accuracy"`

	// Frames is only filled by Get.
	Frames []Frame `json:"history,omitempty"`
}

// Sessions is an archive of Sessions in a SQLite database.
type Sessions struct {
	db *sql.DB
}

// OpenSessions opens (creating if necessary) the archive at path. A path of ":memory:" gives an
// archive that lasts as long as the Sessions.
func OpenSessions(path string) (*Sessions, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open session archive")
	}

	// a single connection keeps in-memory databases alive and serializes writers
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sessions(
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		learning_rate REAL NOT NULL,
		epochs INTEGER NOT NULL,
		mode TEXT NOT NULL,
		report_every INTEGER NOT NULL,
		state TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		final_loss REAL NOT NULL,
		final_accuracy REAL NOT NULL,
		history TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "Failed to create sessions table")
	}

	return &Sessions{db}, nil
}

// Put inserts s, replacing any Session with the same id.
func (s *Sessions) Put(ctx context.Context, sess *Session) error {
	hist, err := json.Marshal(sess.Frames)
	if err != nil {
		return errors.Wrapf(err, "Failed to encode history of session %s", sess.ID)
	}

	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO sessions(
		id, created_at, learning_rate, epochs, mode, report_every, state, error, final_loss, final_accuracy, history
	) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		sess.ID, sess.CreatedAt.UnixNano(), sess.LearningRate, sess.Epochs, sess.Mode, sess.ReportEvery,
		sess.State, sess.Error, sess.FinalLoss, sess.FinalAccuracy, string(hist))
	if err != nil {
		return errors.Wrapf(err, "Failed to store session %s", sess.ID)
	}

	return nil
}

const columns = `id, created_at, learning_rate, epochs, mode, report_every, state, error, final_loss, final_accuracy`

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner, extra ...any) (*Session, error) {
	var sess Session
	var created int64
	dest := append([]any{&sess.ID, &created, &sess.LearningRate, &sess.Epochs, &sess.Mode, &sess.ReportEvery,
		&sess.State, &sess.Error, &sess.FinalLoss, &sess.FinalAccuracy}, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	sess.CreatedAt = time.Unix(0, created).UTC()
	return &sess, nil
}

// List returns every Session, newest first, without their Frames.
func (s *Sessions) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM sessions ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to list sessions")
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scan(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read session")
		}
		out = append(out, *sess)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "Failed to list sessions")
	}

	return out, nil
}

// Get returns the Session with the given id, including its Frames. It returns ErrNotFound if
// there is no such Session.
func (s *Sessions) Get(ctx context.Context, id string) (*Session, error) {
	var hist string
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+`, history FROM sessions WHERE id = ?`, id)

	sess, err := scan(row, &hist)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, errors.Wrapf(err, "Failed to read session %s", id)
	}

	if err := json.Unmarshal([]byte(hist), &sess.Frames); err != nil {
		return nil, errors.Wrapf(err, "Failed to decode history of session %s", id)
	}

	return sess, nil
}

// Close closes the database.
func (s *Sessions) Close() error {
	return s.db.Close()
}
