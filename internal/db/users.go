package db

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateUserInput struct {
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

func (db *DB) CreateUser(input CreateUserInput) (*User, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, &ValidationError{Field: "name"}
	}
	if strings.TrimSpace(input.Email) == "" {
		return nil, &ValidationError{Field: "email"}
	}
	role := input.Role
	if role == "" {
		role = "user"
	}
	res, err := db.Exec(`INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)`,
		input.Name, input.Email, input.PasswordHash, role)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading user id: %w", err)
	}
	return &User{ID: id, Name: input.Name, Email: input.Email, Role: role}, nil
}

// GetUserByEmail returns the user and their password hash for login checks.
func (db *DB) GetUserByEmail(email string) (*User, string, error) {
	u := &User{}
	var passwordHash string
	err := db.QueryRow(`SELECT id, name, email, password_hash, role, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Name, &u.Email, &passwordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, "", err
	}
	return u, passwordHash, nil
}

func (db *DB) GetUserByID(id int64) (*User, error) {
	u := &User{}
	err := db.QueryRow(`SELECT id, name, email, role, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (db *DB) ListUsers() ([]*User, error) {
	rows, err := db.Query(`SELECT id, name, email, role, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u := &User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// BulkCreateUsers inserts a batch of users in one transaction. Either every
// row lands or none of them do.
func (db *DB) BulkCreateUsers(inputs []CreateUserInput) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning bulk user transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing user insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, in := range inputs {
		if strings.TrimSpace(in.Name) == "" {
			return 0, &ValidationError{Field: "name"}
		}
		if strings.TrimSpace(in.Email) == "" {
			return 0, &ValidationError{Field: "email"}
		}
		role := in.Role
		if role == "" {
			role = "user"
		}
		if _, err := stmt.Exec(in.Name, in.Email, in.PasswordHash, role); err != nil {
			return 0, fmt.Errorf("inserting user %q: %w", in.Email, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing bulk users: %w", err)
	}
	return inserted, nil
}
