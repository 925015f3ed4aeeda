package interactions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prograin/agent-backend/internal/db"
)

// Store provides append and read operations for the interaction audit log.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Record appends a new interaction and returns its id. If in.ID is empty a
// UUID is generated.
func (s *Store) Record(ctx context.Context, in Interaction) (string, error) {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.Actor == "" {
		in.Actor = "user"
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	var userID sql.NullString
	if in.UserID != "" {
		userID = sql.NullString{String: in.UserID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, user_id, actor, task, input, output, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.ID, userID, in.Actor, string(in.Task), string(in.Input), string(in.Output), in.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("inserting interaction: %w", err)
	}
	return in.ID, nil
}

// GetByID retrieves a single interaction, or nil if it does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Interaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, actor, task, input, output, created_at
		FROM interactions WHERE id = ?`, id)

	in, err := scanInteraction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading interaction %s: %w", id, err)
	}
	return in, nil
}

// Query returns interactions matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Interaction, error) {
	var conds []string
	var args []any

	if filter.Task != "" {
		conds = append(conds, "task = ?")
		args = append(args, string(filter.Task))
	}
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}

	query := `SELECT id, user_id, actor, task, input, output, created_at FROM interactions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		in, err := scanInteraction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

func scanInteraction(scan func(...any) error) (*Interaction, error) {
	var in Interaction
	var userID sql.NullString
	var task, input, output string

	if err := scan(&in.ID, &userID, &in.Actor, &task, &input, &output, &in.CreatedAt); err != nil {
		return nil, err
	}
	in.UserID = userID.String
	in.Task = Task(task)
	in.Input = json.RawMessage(input)
	in.Output = json.RawMessage(output)
	return &in, nil
}
