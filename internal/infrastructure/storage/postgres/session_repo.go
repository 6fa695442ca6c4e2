package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"skugen/internal/core/allocation"
	"skugen/internal/core/apperror"
)

const sessionTable = "shop_sessions"

// SessionRepo stores offline access tokens per shop.
type SessionRepo struct {
	txm *TxManager
}

var _ allocation.SessionStore = (*SessionRepo)(nil)

// NewSessionRepo creates a new session repository.
func NewSessionRepo(txm *TxManager) *SessionRepo {
	return &SessionRepo{txm: txm}
}

// Get implements allocation.SessionStore.
func (r *SessionRepo) Get(ctx context.Context, shop string) (*allocation.Session, error) {
	query, args, err := psql.Select("shop", "access_token", "scope", "updated_at").
		From(sessionTable).
		Where(squirrel.Eq{"shop": shop}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var s allocation.Session
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("shop_session", shop)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// Put implements allocation.SessionStore.
func (r *SessionRepo) Put(ctx context.Context, session allocation.Session) error {
	query, args, err := psql.Insert(sessionTable).
		Columns("shop", "access_token", "scope").
		Values(session.Shop, session.AccessToken, session.Scope).
		Suffix("ON CONFLICT (shop) DO UPDATE SET access_token = EXCLUDED.access_token, " +
			"scope = EXCLUDED.scope, updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Delete implements allocation.SessionStore. Deleting a missing session is not an error.
func (r *SessionRepo) Delete(ctx context.Context, shop string) error {
	query, args, err := psql.Delete(sessionTable).Where(squirrel.Eq{"shop": shop}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
