package store

import (
	"context"
	"fmt"
)

// Operation is one entry of the scheduled operation queue.
type Operation struct {
	Seq         int64
	ExecutionID string
	Payload     []byte
}

// HostCall is one logged primitive invocation.
type HostCall struct {
	ExecutionID string
	Seq         int64
	Depth       int
	Application string
	Primitive   string
	Detail      string
}

// AppendOperation appends payload to the operation queue and returns its
// queue position. The queue is append-only.
func (s *Store) AppendOperation(ctx context.Context, executionID string, payload []byte) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO operations (execution_id, payload) VALUES (?, ?)
	`, executionID, nonNil(payload))
	if err != nil {
		return 0, fmt.Errorf("append operation: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append operation: %w", err)
	}
	return seq, nil
}

// ReadOperations returns the operations scheduled by one execution, in
// scheduling order. An empty executionID selects every execution.
func (s *Store) ReadOperations(ctx context.Context, executionID string) ([]Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, execution_id, payload
		FROM operations
		WHERE ? = '' OR execution_id = ?
		ORDER BY seq ASC
	`, executionID, executionID)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	out := []Operation{}
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.Seq, &op.ExecutionID, &op.Payload); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return out, nil
}

// WriteHostCall logs a primitive invocation. Writing the same
// (execution, seq) twice is silently ignored.
func (s *Store) WriteHostCall(ctx context.Context, call HostCall) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO host_calls
		(execution_id, seq, depth, application, primitive, detail)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		call.ExecutionID,
		call.Seq,
		call.Depth,
		call.Application,
		call.Primitive,
		call.Detail,
	)
	if err != nil {
		return fmt.Errorf("write host call: %w", err)
	}
	return nil
}

// ReadHostCalls returns the calls of one execution ordered by seq.
func (s *Store) ReadHostCalls(ctx context.Context, executionID string) ([]HostCall, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, seq, depth, application, primitive, detail
		FROM host_calls
		WHERE execution_id = ?
		ORDER BY seq ASC
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("query host calls: %w", err)
	}
	defer rows.Close()

	out := []HostCall{}
	for rows.Next() {
		var c HostCall
		if err := rows.Scan(&c.ExecutionID, &c.Seq, &c.Depth, &c.Application, &c.Primitive, &c.Detail); err != nil {
			return nil, fmt.Errorf("scan host call: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate host calls: %w", err)
	}
	return out, nil
}

// ListExecutions returns the ids of every execution with logged calls,
// in first-seen order.
func (s *Store) ListExecutions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id
		FROM host_calls
		GROUP BY execution_id
		ORDER BY MIN(rowid) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return out, nil
}
