package repo

import (
	"context"
	"database/sql"

	"github.com/JaligamRishitha/renewmart-sub002/internal/domain"
)

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(id,email,first_name,last_name,created_at) VALUES (?,?,?,?,?)`,
		u.ID, nullable(u.Email), nullable(u.FirstName), nullable(u.LastName), u.CreatedAt)
	return err
}

func (r Repo) EnsureUser(ctx context.Context, tx *sql.Tx, userID, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO users(id, created_at) VALUES (?,?)`, userID, now)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	var email, firstName, lastName sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,email,first_name,last_name,created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &email, &firstName, &lastName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	if email.Valid {
		u.Email = email.String
	}
	if firstName.Valid {
		u.FirstName = firstName.String
	}
	if lastName.Valid {
		u.LastName = lastName.String
	}
	roles, err := r.ListUserRoles(ctx, u.ID)
	if err != nil {
		return u, err
	}
	u.Roles = roles
	return u, nil
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,email,first_name,last_name,created_at FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		var email, firstName, lastName sql.NullString
		if err := rows.Scan(&u.ID, &email, &firstName, &lastName, &u.CreatedAt); err != nil {
			return nil, err
		}
		if email.Valid {
			u.Email = email.String
		}
		if firstName.Valid {
			u.FirstName = firstName.String
		}
		if lastName.Valid {
			u.LastName = lastName.String
		}
		res = append(res, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		roles, err := r.ListUserRoles(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].Roles = roles
	}
	return res, nil
}

func (r Repo) ListUserRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id=? ORDER BY role ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r Repo) AssignUserRole(ctx context.Context, tx *sql.Tx, userID, role string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO user_roles(user_id, role) VALUES (?,?)`, userID, role)
	return err
}

func (r Repo) RevokeUserRole(ctx context.Context, tx *sql.Tx, userID, role string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id=? AND role=?`, userID, role)
	return err
}
