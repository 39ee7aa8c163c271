package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/VoteChain/internal/chain"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to serialise
// concurrent saves from more than one process pointed at the same database.
const advisoryLockKey = int64(1_702_311_977)

// PostgresStore persists ledger state to PostgreSQL. Sealed blocks are
// append-only rows in ledger_blocks; the pending pool is rewritten on every
// save. The schema lives in migrations/.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context) (*State, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT idx, timestamp, votes, proof, previous_hash
		 FROM ledger_blocks ORDER BY idx ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger blocks: %w", err)
	}
	defer rows.Close()

	st := &State{}
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		st.Chain = append(st.Chain, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger blocks: %w", err)
	}

	pending, err := s.pool.Query(ctx,
		`SELECT voter_id, candidate_id, timestamp
		 FROM ledger_pending ORDER BY position ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending votes: %w", err)
	}
	defer pending.Close()

	for pending.Next() {
		var (
			v  chain.Vote
			ts float64
		)
		if err := pending.Scan(&v.VoterID, &v.CandidateID, &ts); err != nil {
			return nil, fmt.Errorf("scan pending vote: %w", err)
		}
		v.Timestamp = chain.Timestamp(ts)
		st.PendingVotes = append(st.PendingVotes, v)
	}
	if err := pending.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending votes: %w", err)
	}

	if len(st.Chain) == 0 && len(st.PendingVotes) == 0 {
		return nil, ErrNoState
	}
	return st, nil
}

// Save implements Store. Blocks already stored are never rewritten; only
// blocks with a higher index than the stored tip are inserted, and only when
// st.Chain holds the stored tip unchanged. Otherwise Save returns ErrDiverged.
func (s *PostgresStore) Save(ctx context.Context, st *State) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	var storedTip int64
	tip, err := scanBlock(tx.QueryRow(ctx,
		`SELECT idx, timestamp, votes, proof, previous_hash
		 FROM ledger_blocks ORDER BY idx DESC LIMIT 1`,
	))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// nothing stored yet
	case err != nil:
		return fmt.Errorf("read stored tip: %w", err)
	default:
		if err := checkExtends(tip, st.Chain); err != nil {
			return err
		}
		storedTip = tip.Index
	}

	inserted := 0
	for _, b := range st.Chain {
		if b.Index <= storedTip {
			continue
		}
		votes := b.Votes
		if votes == nil {
			votes = []chain.Vote{}
		}
		votesJSON, err := json.Marshal(votes)
		if err != nil {
			return fmt.Errorf("marshal block %d votes: %w", b.Index, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO ledger_blocks (idx, timestamp, votes, proof, previous_hash)
			 VALUES ($1, $2, $3, $4, $5)`,
			b.Index, float64(b.Timestamp), votesJSON, b.Proof, b.PreviousHash,
		); err != nil {
			return fmt.Errorf("insert block %d: %w", b.Index, err)
		}
		inserted++
	}

	if _, err := tx.Exec(ctx, "DELETE FROM ledger_pending"); err != nil {
		return fmt.Errorf("clear pending votes: %w", err)
	}
	if len(st.PendingVotes) > 0 {
		rows := make([][]any, len(st.PendingVotes))
		for i, v := range st.PendingVotes {
			rows[i] = []any{i, v.VoterID, v.CandidateID, float64(v.Timestamp)}
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"ledger_pending"},
			[]string{"position", "voter_id", "candidate_id", "timestamp"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("insert pending votes: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}

	s.logger.Debug("ledger state saved",
		zap.Int("blocks_inserted", inserted),
		zap.Int("pending", len(st.PendingVotes)),
	)
	return nil
}

// scanBlock reads one ledger_blocks row.
func scanBlock(row pgx.Row) (chain.Block, error) {
	var (
		b     chain.Block
		ts    float64
		votes []byte
	)
	if err := row.Scan(&b.Index, &ts, &votes, &b.Proof, &b.PreviousHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return b, err
		}
		return b, fmt.Errorf("scan ledger block: %w", err)
	}
	b.Timestamp = chain.Timestamp(ts)
	if err := json.Unmarshal(votes, &b.Votes); err != nil {
		return b, fmt.Errorf("%w: block %d votes: %v", ErrCorrupt, b.Index, err)
	}
	if b.Votes == nil {
		b.Votes = []chain.Vote{}
	}
	return b, nil
}

// checkExtends reports whether blocks contains the stored tip at its index.
// Since every block links to its predecessor by digest, a matching tip means
// the whole stored prefix matches.
func checkExtends(storedTip chain.Block, blocks []chain.Block) error {
	if storedTip.Index < 1 || storedTip.Index > int64(len(blocks)) {
		return fmt.Errorf("%w: stored chain has %d blocks, refusing to save %d",
			ErrDiverged, storedTip.Index, len(blocks))
	}
	if chain.Digest(blocks[storedTip.Index-1]) != chain.Digest(storedTip) {
		return fmt.Errorf("%w: block %d differs from the stored tip", ErrDiverged, storedTip.Index)
	}
	return nil
}
