package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"astro-starter/internal/domain"
	"astro-starter/internal/naming"
)

var (
	userTable          = naming.PhysicalName("AppUser")
	authorityTable     = naming.PhysicalName("Authority")
	userAuthorityTable = naming.JoinTableName(userTable, authorityTable)
)

var (
	userColumns = `u.id, u.login, u.password_hash, COALESCE(u.first_name, ''), COALESCE(u.last_name, ''),
		COALESCE(u.email, ''), COALESCE(u.image_url, ''), u.activated, COALESCE(u.lang_key, ''),
		COALESCE(u.activation_key, ''), COALESCE(u.reset_key, ''), u.reset_date, u.created_by, u.created_date,
		COALESCE(u.last_modified_by, ''), COALESCE(u.last_modified_date, u.created_date)`

	authoritiesColumn = fmt.Sprintf(`COALESCE((
		SELECT array_agg(ua.authority_name ORDER BY ua.authority_name)
		FROM %s ua WHERE ua.user_id = u.id
	), '{}')`, userAuthorityTable)

	selectUser                = fmt.Sprintf(`SELECT %s FROM %s u`, userColumns, userTable)
	selectUserWithAuthorities = fmt.Sprintf(`SELECT %s, %s FROM %s u`, userColumns, authoritiesColumn, userTable)
)

// UserRepository define el contrato de persistencia para usuarios.
// Los finders devuelven pgx.ErrNoRows cuando no hay coincidencia.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user domain.User) error
	UpdateWithAuthorities(ctx context.Context, user domain.User, authorities []string) error
	Delete(ctx context.Context, id int64) error
	FindOneByID(ctx context.Context, id int64) (domain.User, error)
	FindOneByLogin(ctx context.Context, login string) (domain.User, error)
	FindOneByEmailIgnoreCase(ctx context.Context, email string) (domain.User, error)
	FindOneByActivationKey(ctx context.Context, key string) (domain.User, error)
	FindOneByResetKey(ctx context.Context, key string) (domain.User, error)
	FindOneWithAuthoritiesByLogin(ctx context.Context, login string) (domain.User, error)
	FindOneWithAuthoritiesByEmailIgnoreCase(ctx context.Context, email string) (domain.User, error)
	FindAllByLoginNot(ctx context.Context, login string, offset, limit int) ([]domain.User, error)
	CountByLoginNot(ctx context.Context, login string) (int64, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

// Create inserta el usuario y sus authorities en una transacción y asigna el ID generado.
func (r *PgUserRepository) Create(ctx context.Context, user *domain.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			login, password_hash, first_name, last_name, email, image_url, activated, lang_key,
			activation_key, reset_key, reset_date, created_by, created_date, last_modified_by, last_modified_date
		) VALUES (
			$1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, NULLIF($8, ''),
			NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13, NULLIF($14, ''), $15
		)
		RETURNING id
	`, userTable)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, query,
		user.Login,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Email,
		user.ImageURL,
		user.Activated,
		user.LangKey,
		user.ActivationKey,
		user.ResetKey,
		user.ResetDate,
		user.CreatedBy,
		user.CreatedDate,
		user.LastModifiedBy,
		user.LastModifiedDate,
	).Scan(&user.ID)
	if err != nil {
		return err
	}

	if err := insertAuthorities(ctx, tx, user.ID, user.Authorities); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const updateUserSQL = `
	UPDATE %s SET
		login = $2,
		password_hash = $3,
		first_name = NULLIF($4, ''),
		last_name = NULLIF($5, ''),
		email = NULLIF($6, ''),
		image_url = NULLIF($7, ''),
		activated = $8,
		lang_key = NULLIF($9, ''),
		activation_key = NULLIF($10, ''),
		reset_key = NULLIF($11, ''),
		reset_date = $12,
		last_modified_by = NULLIF($13, ''),
		last_modified_date = $14
	WHERE id = $1
`

// Update actualiza las columnas del usuario sin tocar sus authorities.
func (r *PgUserRepository) Update(ctx context.Context, user domain.User) error {
	return updateUser(ctx, r.pool, user)
}

// UpdateWithAuthorities actualiza las columnas y reemplaza los roles en una sola transacción.
func (r *PgUserRepository) UpdateWithAuthorities(ctx context.Context, user domain.User, authorities []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := updateUser(ctx, tx, user); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, userAuthorityTable), user.ID); err != nil {
		return err
	}
	if err := insertAuthorities(ctx, tx, user.ID, authorities); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func updateUser(ctx context.Context, db execer, user domain.User) error {
	tag, err := db.Exec(ctx, fmt.Sprintf(updateUserSQL, userTable),
		user.ID,
		user.Login,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Email,
		user.ImageURL,
		user.Activated,
		user.LangKey,
		user.ActivationKey,
		user.ResetKey,
		user.ResetDate,
		user.LastModifiedBy,
		user.LastModifiedDate,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, userTable), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) FindOneByID(ctx context.Context, id int64) (domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE u.id = $1`, id), false)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (r *PgUserRepository) FindOneByLogin(ctx context.Context, login string) (domain.User, error) {
	return r.findOne(ctx, selectUser+` WHERE u.login = $1`, false, login)
}

func (r *PgUserRepository) FindOneByEmailIgnoreCase(ctx context.Context, email string) (domain.User, error) {
	return r.findOne(ctx, selectUser+` WHERE LOWER(u.email) = LOWER($1)`, false, email)
}

func (r *PgUserRepository) FindOneByActivationKey(ctx context.Context, key string) (domain.User, error) {
	return r.findOne(ctx, selectUser+` WHERE u.activation_key = $1`, false, key)
}

func (r *PgUserRepository) FindOneByResetKey(ctx context.Context, key string) (domain.User, error) {
	return r.findOne(ctx, selectUser+` WHERE u.reset_key = $1`, false, key)
}

func (r *PgUserRepository) FindOneWithAuthoritiesByLogin(ctx context.Context, login string) (domain.User, error) {
	return r.findOne(ctx, selectUserWithAuthorities+` WHERE u.login = $1`, true, login)
}

func (r *PgUserRepository) FindOneWithAuthoritiesByEmailIgnoreCase(ctx context.Context, email string) (domain.User, error) {
	return r.findOne(ctx, selectUserWithAuthorities+` WHERE LOWER(u.email) = LOWER($1)`, true, email)
}

func (r *PgUserRepository) FindAllByLoginNot(ctx context.Context, login string, offset, limit int) ([]domain.User, error) {
	query := selectUserWithAuthorities + ` WHERE u.login <> $1 ORDER BY u.id OFFSET $2 LIMIT $3`
	rows, err := r.pool.Query(ctx, query, login, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows, true)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PgUserRepository) CountByLoginNot(ctx context.Context, login string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE login <> $1`, userTable), login).Scan(&n)
	return n, err
}

func (r *PgUserRepository) findOne(ctx context.Context, query string, withAuthorities bool, arg string) (domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, query, arg), withAuthorities)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func scanUser(row pgx.Row, withAuthorities bool) (domain.User, error) {
	var u domain.User
	dest := []any{
		&u.ID,
		&u.Login,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.ImageURL,
		&u.Activated,
		&u.LangKey,
		&u.ActivationKey,
		&u.ResetKey,
		&u.ResetDate,
		&u.CreatedBy,
		&u.CreatedDate,
		&u.LastModifiedBy,
		&u.LastModifiedDate,
	}
	if withAuthorities {
		dest = append(dest, &u.Authorities)
	}
	if err := row.Scan(dest...); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func insertAuthorities(ctx context.Context, tx pgx.Tx, userID int64, authorities []string) error {
	if len(authorities) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, authority_name)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING
	`, userAuthorityTable)
	_, err := tx.Exec(ctx, query, userID, authorities)
	return err
}
