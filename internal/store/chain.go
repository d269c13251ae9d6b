package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/svcrt/internal/base"
)

// ErrNoChainFacts is returned when chain facts have not been written yet.
var ErrNoChainFacts = errors.New("chain facts not initialized")

// ChainFacts is the chain-level state observed by a query.
type ChainFacts struct {
	ChainID       base.ChainID
	ApplicationID base.ApplicationID
	BlockHeight   base.BlockHeight
	Timestamp     base.Timestamp
	ChainBalance  base.Amount
}

// OwnerBalance is one ledger row.
type OwnerBalance struct {
	Owner   base.AccountOwner
	Balance base.Amount
}

// WriteChainFacts replaces the chain facts row.
func (s *Store) WriteChainFacts(ctx context.Context, f ChainFacts) error {
	height, err := toInt64("block height", uint64(f.BlockHeight))
	if err != nil {
		return fmt.Errorf("write chain facts: %w", err)
	}
	micros, err := toInt64("timestamp", f.Timestamp.Micros())
	if err != nil {
		return fmt.Errorf("write chain facts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chain_facts
		(id, chain_id, application_id, block_height, timestamp_micros, chain_balance)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chain_id = excluded.chain_id,
			application_id = excluded.application_id,
			block_height = excluded.block_height,
			timestamp_micros = excluded.timestamp_micros,
			chain_balance = excluded.chain_balance
	`,
		f.ChainID.String(),
		f.ApplicationID.String(),
		height,
		micros,
		f.ChainBalance.String(),
	)
	if err != nil {
		return fmt.Errorf("write chain facts: %w", err)
	}
	return nil
}

// ReadChainFacts returns the chain facts row, or ErrNoChainFacts.
func (s *Store) ReadChainFacts(ctx context.Context) (ChainFacts, error) {
	var (
		chainID, appID, balance string
		height, micros          int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT chain_id, application_id, block_height, timestamp_micros, chain_balance
		FROM chain_facts
		WHERE id = 1
	`).Scan(&chainID, &appID, &height, &micros, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return ChainFacts{}, ErrNoChainFacts
	}
	if err != nil {
		return ChainFacts{}, fmt.Errorf("read chain facts: %w", err)
	}

	var f ChainFacts
	if f.ChainID, err = base.ParseChainID(chainID); err != nil {
		return ChainFacts{}, fmt.Errorf("read chain facts: %w", err)
	}
	if f.ApplicationID, err = base.ParseApplicationID(appID); err != nil {
		return ChainFacts{}, fmt.Errorf("read chain facts: %w", err)
	}
	if f.ChainBalance, err = base.ParseAmount(balance); err != nil {
		return ChainFacts{}, fmt.Errorf("read chain facts: %w", err)
	}
	f.BlockHeight = base.BlockHeight(height)
	f.Timestamp = base.TimestampFromMicros(uint64(micros))
	return f, nil
}

// SetBalance sets the balance of owner. A zero amount removes the owner from
// the ledger; a new owner is listed after every existing one.
func (s *Store) SetBalance(ctx context.Context, owner base.AccountOwner, amount base.Amount) error {
	if amount.IsZero() {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM balances WHERE owner = ?`, owner.Bytes()); err != nil {
			return fmt.Errorf("set balance: %w", err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balances (owner, amount, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM balances))
		ON CONFLICT(owner) DO UPDATE SET amount = excluded.amount
	`, owner.Bytes(), amount.String())
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

// Credit adds amount to the balance of owner, failing on overflow.
func (s *Store) Credit(ctx context.Context, owner base.AccountOwner, amount base.Amount) error {
	current, err := s.ReadBalance(ctx, owner)
	if err != nil {
		return err
	}
	next, err := current.CheckedAdd(amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", owner, err)
	}
	return s.SetBalance(ctx, owner, next)
}

// ReadBalance returns the balance of owner, zero if the owner holds nothing.
func (s *Store) ReadBalance(ctx context.Context, owner base.AccountOwner) (base.Amount, error) {
	var amount string
	err := s.db.QueryRowContext(ctx, `SELECT amount FROM balances WHERE owner = ?`, owner.Bytes()).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return base.ZeroAmount, nil
	}
	if err != nil {
		return base.Amount{}, fmt.Errorf("read balance: %w", err)
	}
	return base.ParseAmount(amount)
}

// ReadBalances returns the whole ledger in first-credit order.
// Returns an empty slice (not nil) if the ledger is empty.
func (s *Store) ReadBalances(ctx context.Context) ([]OwnerBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, amount
		FROM balances
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	out := []OwnerBalance{}
	for rows.Next() {
		var (
			raw    []byte
			amount string
		)
		if err := rows.Scan(&raw, &amount); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		owner, err := base.OwnerFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balance, err := base.ParseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out = append(out, OwnerBalance{Owner: owner, Balance: balance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return out, nil
}

func toInt64(what string, v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%s %d does not fit in storage", what, v)
	}
	return int64(v), nil
}
