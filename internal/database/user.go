// internal/database/user.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/soliduel/soliduel/internal/auth"
	"github.com/soliduel/soliduel/internal/models"
	"github.com/soliduel/soliduel/internal/rating"
)

// CreateUser hashes the password and inserts the user row. The id is
// generated when absent.
func CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	hash, err := auth.HashPassword(user.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash
	if user.Rating == 0 {
		user.Rating = rating.DefaultRating
	}

	q := `INSERT INTO users (id, email, password, username, is_ephemeral, rating)
	      VALUES ($1, $2, $3, $4, $5, $6)`
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			user.ID, user.Email, user.Password, user.Username,
			user.IsEphemeral, user.Rating,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	q := `SELECT id, email, password, username, is_ephemeral, rating
	      FROM users WHERE email=$1`
	err := DB.QueryRow(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.Password, &u.Username, &u.IsEphemeral, &u.Rating,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserCredentials rehashes the password and overwrites the account
// fields. Used when an ephemeral guest claims a permanent account.
func UpdateUserCredentials(ctx context.Context, user *models.User) error {
	hash, err := auth.HashPassword(user.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash

	q := `UPDATE users SET email=$1, password=$2, username=$3, is_ephemeral=$4 WHERE id=$5`
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			user.Email, user.Password, user.Username, user.IsEphemeral, user.ID,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// AuthenticateUser checks the email/password pair and returns a signed
// session token.
func AuthenticateUser(ctx context.Context, email, password string) (string, error) {
	u, err := GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("user lookup failed: %w", err)
	}
	ok, err := auth.VerifyPassword(password, u.Password)
	if err != nil {
		return "", fmt.Errorf("password verify failed: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("invalid credentials")
	}
	return auth.CreateJWT(u.ID.String())
}

func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	q := `SELECT id, email, password, username, is_ephemeral, rating
	      FROM users WHERE id=$1`
	err := DB.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.Email, &u.Password, &u.Username, &u.IsEphemeral, &u.Rating,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
