// Package auth implements the credential store the tracker delegates login
// checks to. It is the external authentication collaborator of the
// coordination core, kept behind the Authenticator interface so the tracker
// never touches SQL directly.
package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ErrUserExists reports a signup for a username that is already taken.
var ErrUserExists = errors.New("user already exists")

// ErrInvalidCredentials reports a login with a wrong username or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator is the login check the tracker coordinator depends on.
type Authenticator interface {
	Login(username, password string) error
}

// Registrar is the signup operation the tracker's HTTP surface depends on.
type Registrar interface {
	Register(username, password string) error
}

// Store handles SQLite operations for the user credential table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the credential database at dbPath and ensures the
// schema exists.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Register creates a new user. It fails with ErrUserExists when the username
// is already taken.
func (s *Store) Register(username, password string) error {
	exists, err := s.Exists(username)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrUserExists, username)
	}

	if _, err := s.db.Exec(
		"INSERT INTO users (username, password) VALUES (?, ?)", username, password,
	); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	return nil
}

// Exists reports whether the username is present in the store.
func (s *Store) Exists(username string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(1) FROM users WHERE username = ?", username,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query user: %w", err)
	}
	return count > 0, nil
}

// Login checks the username/password pair and fails with
// ErrInvalidCredentials on any mismatch.
func (s *Store) Login(username, password string) error {
	var stored string
	err := s.db.QueryRow(
		"SELECT password FROM users WHERE username = ?", username,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("failed to query user: %w", err)
	}

	if stored != password {
		return ErrInvalidCredentials
	}
	return nil
}
