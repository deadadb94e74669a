package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"astro-starter/internal/domain"
)

// AuthorityRepository define el acceso a roles.
type AuthorityRepository interface {
	FindByName(ctx context.Context, name string) (domain.Authority, error)
	FindAll(ctx context.Context) ([]domain.Authority, error)
}

// PgAuthorityRepository implementa AuthorityRepository usando pgxpool.
type PgAuthorityRepository struct {
	pool *pgxpool.Pool
}

func NewPgAuthorityRepository(pool *pgxpool.Pool) *PgAuthorityRepository {
	return &PgAuthorityRepository{pool: pool}
}

func (r *PgAuthorityRepository) FindByName(ctx context.Context, name string) (domain.Authority, error) {
	var a domain.Authority
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT name FROM %s WHERE name = $1`, authorityTable), name).Scan(&a.Name)
	if err != nil {
		return domain.Authority{}, err
	}
	return a, nil
}

func (r *PgAuthorityRepository) FindAll(ctx context.Context) ([]domain.Authority, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT name FROM %s ORDER BY name`, authorityTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Authority
	for rows.Next() {
		var a domain.Authority
		if err := rows.Scan(&a.Name); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
