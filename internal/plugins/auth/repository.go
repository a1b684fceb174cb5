package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/smart-asd/portal/internal/apperror"
)

// mysqlErrDuplicateEntry is MariaDB's ER_DUP_ENTRY.
const mysqlErrDuplicateEntry = 1062

// UserRepository defines the data access contract for accounts. Lookups are
// by unique field only. A missing row is reported as apperror.NotFound.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByEmailOrPhone(ctx context.Context, email, phone string) (*User, error)
	FindRoleByName(ctx context.Context, name string) (*Role, error)

	// Create inserts the user and, when patient is non-nil, the patient
	// side record in the same transaction.
	Create(ctx context.Context, user *User, patient *PatientProfile) error

	MarkVerified(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id string) error
}

// userRepository implements UserRepository with hand-written MariaDB queries.
type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository backed by the given DB pool.
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

// userColumns is the shared projection for user lookups. The role name is
// joined in because sessions carry it.
const userColumns = `u.id, u.email, u.phone, u.full_name, u.role_id, r.name,
	u.password_hash, u.is_active, u.is_verified, u.institution_id,
	u.created_at, u.last_login_at`

func scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Phone,
		&user.FullName,
		&user.RoleID,
		&user.Role,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsVerified,
		&user.InstitutionID,
		&user.CreatedAt,
		&user.LastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves a user by email address.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + `
	          FROM users u JOIN roles r ON r.id = u.role_id
	          WHERE u.email = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil && !apperror.HasType(err, apperror.TypeNotFound) {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return user, err
}

// FindByEmailOrPhone retrieves any user holding either identifier. Used by
// registration to refuse duplicates.
func (r *userRepository) FindByEmailOrPhone(ctx context.Context, email, phone string) (*User, error) {
	query := `SELECT ` + userColumns + `
	          FROM users u JOIN roles r ON r.id = u.role_id
	          WHERE u.email = ? OR u.phone = ?
	          LIMIT 1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email, phone))
	if err != nil && !apperror.HasType(err, apperror.TypeNotFound) {
		return nil, fmt.Errorf("querying user by email or phone: %w", err)
	}
	return user, err
}

// FindRoleByName retrieves a role row by its unique name.
func (r *userRepository) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	role := &Role{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM roles WHERE name = ?`, name).
		Scan(&role.ID, &role.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("role not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying role: %w", err)
	}
	return role, nil
}

// Create inserts the user row and optional patient row atomically. A unique
// key violation (a concurrent registration won the race) surfaces as
// DuplicateAccount.
func (r *userRepository) Create(ctx context.Context, user *User, patient *PatientProfile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, phone, full_name, role_id, password_hash,
		                    is_active, is_verified, verification_method, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'email', ?)`,
		user.ID, user.Email, user.Phone, user.FullName, user.RoleID, user.PasswordHash,
		user.IsActive, user.IsVerified, user.CreatedAt,
	)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry {
			return apperror.NewDuplicateAccount()
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	if patient != nil {
		var institutionID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM institutions ORDER BY created_at, id LIMIT 1`).Scan(&institutionID)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.New("no institution found to link patient")
		}
		if err != nil {
			return fmt.Errorf("querying institution: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO patients (id, patient_unique_id, first_name, last_name, dob, gender,
			                       guardian_id, guardian_name, guardian_phone, institution_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			patient.ID, patient.PatientUniqueID, patient.FirstName, patient.LastName,
			patient.DOB, patient.Gender, patient.GuardianID, patient.GuardianName,
			patient.GuardianPhone, institutionID,
		)
		if err != nil {
			return fmt.Errorf("inserting patient: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user: %w", err)
	}
	return nil
}

// MarkVerified flips is_verified for the account with this email.
func (r *userRepository) MarkVerified(ctx context.Context, email string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET is_verified = TRUE WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("marking user verified: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		// Zero rows also covers "already verified"; confirm the user exists.
		if _, err := r.FindByEmail(ctx, email); err != nil {
			return err
		}
	}
	return nil
}

// UpdatePassword sets a new password hash for the account with this email.
func (r *userRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE email = ?`, passwordHash, email)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		if _, err := r.FindByEmail(ctx, email); err != nil {
			return err
		}
	}
	return nil
}

// UpdateLastLogin sets the last_login_at timestamp to now for the given user.
func (r *userRepository) UpdateLastLogin(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = ?`, id); err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}
