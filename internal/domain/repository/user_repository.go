package repository

import (
	"context"
	"database/sql"
	"fmt"

	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context, role string, limit, offset int) ([]model.User, int, error)
	UpdateRole(ctx context.Context, id, role string) error
	UpdateProfile(ctx context.Context, user *model.User) error
	CountByRole(ctx context.Context) (map[string]int, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, name, email, hashed_password, role, github_url, tshirt_size, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }, u *model.User) error {
	return row.Scan(&u.ID, &u.Name, &u.Email, &u.HashedPassword, &u.Role, &u.GithubURL, &u.TshirtSize, &u.CreatedAt, &u.UpdatedAt)
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, name, email, hashed_password, role, github_url, tshirt_size)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, user.ID, user.Name, user.Email, user.HashedPassword, user.Role, user.GithubURL, user.TshirtSize).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err, "") {
			return fmt.Errorf("user with given email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email), user)
	if err != nil {
		return nil, notFound("pgUserRepository.FindByEmail", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id), user)
	if err != nil {
		return nil, notFound("pgUserRepository.FindByID", err)
	}
	return user, nil
}

// List filters by role when role is non-empty and returns the unpaged total.
func (r *pgUserRepository) List(ctx context.Context, role string, limit, offset int) ([]model.User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE ($1 = '' OR role = $1)`, role).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE ($1 = '' OR role = $1)
		 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`, role, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, 0, fmt.Errorf("pgUserRepository.List scan: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *pgUserRepository) UpdateRole(ctx context.Context, id, role string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`, role, id)
	return expectOne("pgUserRepository.UpdateRole", res, err)
}

func (r *pgUserRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE users SET name = $1, github_url = $2, tshirt_size = $3, updated_at = NOW()
		 WHERE id = $4 RETURNING updated_at`,
		user.Name, user.GithubURL, user.TshirtSize, user.ID).Scan(&user.UpdatedAt)
	if err != nil {
		return notFound("pgUserRepository.UpdateProfile", err)
	}
	return nil
}

func (r *pgUserRepository) CountByRole(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.CountByRole: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{model.RoleStudent: 0, model.RoleJudge: 0, model.RoleAdmin: 0}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("pgUserRepository.CountByRole scan: %w", err)
		}
		counts[role] = n
	}
	return counts, rows.Err()
}
