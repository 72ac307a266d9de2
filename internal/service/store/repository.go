package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/kapu/fclog-bot-go/internal/service/database"
	"github.com/kapu/fclog-bot-go/pkg/errors"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// CommitRequest is the output of one reconciliation, written as a unit.
type CommitRequest struct {
	Members        []*domain.Member
	Events         []*domain.ChangeEvent
	HistoryUpdates []domain.HistoryUpdate
	At             time.Time
}

// Repository is the Snapshot Store, NameHistory table and Event Log for one
// Free Company, backed by PostgreSQL.
type Repository struct {
	postgres       *database.PostgresService
	db             *sql.DB
	organizationID string
	logger         *zap.Logger
}

func NewRepository(postgres *database.PostgresService, organizationID string, logger *zap.Logger) *Repository {
	return &Repository{
		postgres:       postgres,
		db:             postgres.GetDB(),
		organizationID: organizationID,
		logger:         logger,
	}
}

// IsBootstrap reports whether nothing was ever committed for this
// organization. A roster that later empties out does not re-enter bootstrap
// because the tracker state row survives.
func (r *Repository) IsBootstrap(ctx context.Context) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM fc_tracker_state WHERE organization_id = $1)
		    OR EXISTS (SELECT 1 FROM fc_members WHERE organization_id = $1)
	`

	var initialized bool
	if err := r.db.QueryRowContext(ctx, query, r.organizationID).Scan(&initialized); err != nil {
		return false, errors.NewPersistenceError("failed to read tracker state", "is_bootstrap", err)
	}
	return !initialized, nil
}

// LoadSnapshot returns the persisted roster in the order it was fetched.
func (r *Repository) LoadSnapshot(ctx context.Context) ([]*domain.Member, error) {
	query := `
		SELECT character_id, name, rank, avatar_url
		FROM fc_members
		WHERE organization_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, r.organizationID)
	if err != nil {
		return nil, errors.NewPersistenceError("failed to query snapshot", "load_snapshot", err)
	}
	defer rows.Close()

	members := make([]*domain.Member, 0)
	for rows.Next() {
		var (
			id string
			m  domain.Member
		)
		if err := rows.Scan(&id, &m.Name, &m.Rank, &m.AvatarURL); err != nil {
			return nil, errors.NewPersistenceError("failed to scan snapshot row", "load_snapshot", err)
		}
		m.ID = domain.CharacterID(id)
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceError("failed to read snapshot", "load_snapshot", err)
	}

	return members, nil
}

// Commit replaces the snapshot, applies the history updates, appends the
// events and marks the organization as bootstrapped in a single transaction.
// Readers see either the previous cycle's state or this one, never a mix.
func (r *Repository) Commit(ctx context.Context, req CommitRequest) error {
	err := r.postgres.WithTx(ctx, func(tx *sql.Tx) error {
		if err := r.replaceMembers(ctx, tx, req.Members, req.At); err != nil {
			return err
		}
		for _, u := range req.HistoryUpdates {
			if err := r.applyHistory(ctx, tx, u); err != nil {
				return err
			}
		}
		if err := r.appendEvents(ctx, tx, req.Events); err != nil {
			return err
		}
		return r.markCycle(ctx, tx, len(req.Members), req.At)
	})
	if err != nil {
		if errors.IsPersistenceError(err) {
			return err
		}
		return errors.NewPersistenceError("failed to commit cycle", "commit", err)
	}

	r.logger.Debug("Cycle committed",
		zap.String("organization_id", r.organizationID),
		zap.Int("members", len(req.Members)),
		zap.Int("events", len(req.Events)),
		zap.Int("history_updates", len(req.HistoryUpdates)),
	)
	return nil
}

func (r *Repository) replaceMembers(ctx context.Context, tx *sql.Tx, members []*domain.Member, at time.Time) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM fc_members WHERE organization_id = $1`, r.organizationID); err != nil {
		return errors.NewPersistenceError("failed to clear snapshot", "replace_members", err)
	}
	if len(members) == 0 {
		return nil
	}

	ids := make([]string, len(members))
	positions := make([]int64, len(members))
	names := make([]string, len(members))
	ranks := make([]string, len(members))
	avatars := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID.String()
		positions[i] = int64(i)
		names[i] = m.Name
		ranks[i] = m.Rank
		avatars[i] = m.AvatarURL
	}

	query := `
		INSERT INTO fc_members (organization_id, character_id, position, name, rank, avatar_url, updated_at)
		SELECT $1, u.character_id, u.position, u.name, u.rank, u.avatar_url, $7
		FROM unnest($2::text[], $3::int[], $4::text[], $5::text[], $6::text[])
		     AS u(character_id, position, name, rank, avatar_url)
	`
	if _, err := tx.ExecContext(ctx, query, r.organizationID,
		pq.Array(ids), pq.Array(positions), pq.Array(names), pq.Array(ranks), pq.Array(avatars), at); err != nil {
		return errors.NewPersistenceError("failed to insert snapshot", "replace_members", err)
	}
	return nil
}

func (r *Repository) applyHistory(ctx context.Context, tx *sql.Tx, u domain.HistoryUpdate) error {
	var query string
	switch u.Op {
	case domain.HistoryAppend:
		query = `
			INSERT INTO fc_name_history (character_id, names, last_updated)
			VALUES ($1, ARRAY[$2::text], $3)
			ON CONFLICT (character_id) DO UPDATE
			SET names = array_append(fc_name_history.names, $2::text),
			    last_updated = EXCLUDED.last_updated
		`
	default:
		query = `
			INSERT INTO fc_name_history (character_id, names, last_updated)
			VALUES ($1, ARRAY[$2::text], $3)
			ON CONFLICT (character_id) DO UPDATE
			SET names = CASE
			        WHEN fc_name_history.names[array_upper(fc_name_history.names, 1)] = $2::text
			        THEN fc_name_history.names
			        ELSE array_append(fc_name_history.names, $2::text)
			    END,
			    last_updated = EXCLUDED.last_updated
		`
	}

	if _, err := tx.ExecContext(ctx, query, u.CharacterID.String(), u.Name, u.At); err != nil {
		return errors.NewPersistenceError(
			fmt.Sprintf("failed to update name history for %s", u.CharacterID), "apply_history", err)
	}
	return nil
}

func (r *Repository) appendEvents(ctx context.Context, tx *sql.Tx, events []*domain.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	ids := make([]string, len(events))
	kinds := make([]string, len(events))
	previous := make([]string, len(events))
	current := make([]string, len(events))
	names := make([]string, len(events))
	ranks := make([]string, len(events))
	avatars := make([]string, len(events))
	times := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.CharacterID.String()
		kinds[i] = ev.Kind.String()
		previous[i] = ev.Previous
		current[i] = ev.Current
		names[i] = ev.DisplayName
		ranks[i] = ev.DisplayRank
		avatars[i] = ev.AvatarURL
		times[i] = ev.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	// WITH ORDINALITY keeps the BIGSERIAL ids in cycle order.
	query := `
		INSERT INTO fc_events (organization_id, character_id, kind, previous, current,
		                       display_name, display_rank, avatar_url, occurred_at)
		SELECT $1, u.character_id, u.kind, u.previous, u.current,
		       u.display_name, u.display_rank, u.avatar_url, u.occurred_at::timestamptz
		FROM unnest($2::text[], $3::text[], $4::text[], $5::text[], $6::text[], $7::text[], $8::text[], $9::text[])
		     WITH ORDINALITY AS u(character_id, kind, previous, current, display_name, display_rank, avatar_url, occurred_at, ord)
		ORDER BY u.ord
	`
	if _, err := tx.ExecContext(ctx, query, r.organizationID,
		pq.Array(ids), pq.Array(kinds), pq.Array(previous), pq.Array(current),
		pq.Array(names), pq.Array(ranks), pq.Array(avatars), pq.Array(times)); err != nil {
		return errors.NewPersistenceError("failed to append events", "append_events", err)
	}
	return nil
}

func (r *Repository) markCycle(ctx context.Context, tx *sql.Tx, memberCount int, at time.Time) error {
	query := `
		INSERT INTO fc_tracker_state (organization_id, bootstrapped_at, last_cycle_at, last_member_count)
		VALUES ($1, $2, $2, $3)
		ON CONFLICT (organization_id) DO UPDATE
		SET last_cycle_at = EXCLUDED.last_cycle_at,
		    last_member_count = EXCLUDED.last_member_count
	`
	if _, err := tx.ExecContext(ctx, query, r.organizationID, at, memberCount); err != nil {
		return errors.NewPersistenceError("failed to update tracker state", "mark_cycle", err)
	}
	return nil
}

// NameHistory returns every name recorded for id, or nil if it was never seen.
func (r *Repository) NameHistory(ctx context.Context, id domain.CharacterID) (*domain.NameHistory, error) {
	query := `
		SELECT names, last_updated
		FROM fc_name_history
		WHERE character_id = $1
	`

	history := &domain.NameHistory{CharacterID: id}
	err := r.db.QueryRowContext(ctx, query, id.String()).Scan(pq.Array(&history.Names), &history.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewPersistenceError("failed to query name history", "name_history", err)
	}
	return history, nil
}

// RecentEvents returns up to limit events for id, newest first.
func (r *Repository) RecentEvents(ctx context.Context, id domain.CharacterID, limit int) ([]*domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT character_id, kind, previous, current, display_name, display_rank, avatar_url, occurred_at
		FROM fc_events
		WHERE organization_id = $1 AND character_id = $2
		ORDER BY occurred_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, r.organizationID, id.String(), limit)
	if err != nil {
		return nil, errors.NewPersistenceError("failed to query events", "recent_events", err)
	}
	defer rows.Close()

	events := make([]*domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			charID string
			kind   string
			ev     domain.ChangeEvent
		)
		if err := rows.Scan(&charID, &kind, &ev.Previous, &ev.Current, &ev.DisplayName,
			&ev.DisplayRank, &ev.AvatarURL, &ev.Timestamp); err != nil {
			return nil, errors.NewPersistenceError("failed to scan event row", "recent_events", err)
		}
		ev.CharacterID = domain.CharacterID(charID)
		ev.Kind = domain.EventKind(kind)
		if !ev.Kind.Valid() {
			return nil, errors.NewPersistenceError(
				fmt.Sprintf("unknown event kind %q for %s", kind, charID), "recent_events", nil)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceError("failed to read events", "recent_events", err)
	}

	return events, nil
}
