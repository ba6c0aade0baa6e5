package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/userprofile/internal/domain"
	"github.com/Strob0t/userprofile/internal/domain/profile"
	"github.com/Strob0t/userprofile/internal/port/database"
)

const (
	constraintProfilePK    = "user_profiles_pkey"
	constraintProfileEmail = "user_profiles_email_key"
)

const profileColumns = `id, bank_id, first_name, last_name, email`

func (s *Store) GetProfile(ctx context.Context, bankID, userID int64) (*profile.Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE bank_id = $1 AND id = $2`, bankID, userID)

	p, err := scanProfile(row)
	if err != nil {
		return nil, notFoundWrap(err, "get profile %d:%d", bankID, userID)
	}
	return &p, nil
}

func (s *Store) ListProfilesByBank(ctx context.Context, bankID int64) ([]profile.Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE bank_id = $1 ORDER BY id`, bankID)
	if err != nil {
		return nil, fmt.Errorf("list profiles bank %d: %w", bankID, err)
	}
	defer rows.Close()

	var profiles []profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles bank %d: %w", bankID, err)
	}
	return orEmpty(profiles), nil
}

func (s *Store) CreateProfile(ctx context.Context, p *profile.Profile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_profiles (id, bank_id, first_name, last_name, email)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.BankID, p.FirstName, p.LastName, nullIfEmpty(p.Email))
	if err == nil {
		return nil
	}
	switch uniqueViolation(err) {
	case constraintProfilePK:
		return fmt.Errorf("create profile %d: %w", p.ID, database.ErrIDTaken)
	case constraintProfileEmail:
		return fmt.Errorf("create profile: email %q: %w", p.Email, domain.ErrConflict)
	}
	return fmt.Errorf("create profile %d: %w", p.ID, err)
}

func (s *Store) UpdateProfile(ctx context.Context, p *profile.Profile) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE user_profiles SET first_name = $3, last_name = $4, email = $5, updated_at = now()
		 WHERE bank_id = $1 AND id = $2`,
		p.BankID, p.ID, p.FirstName, p.LastName, nullIfEmpty(p.Email))
	if uniqueViolation(err) == constraintProfileEmail {
		return fmt.Errorf("update profile %d:%d: email %q: %w", p.BankID, p.ID, p.Email, domain.ErrConflict)
	}
	return execExpectOne(tag, err, "update profile %d:%d", p.BankID, p.ID)
}

func (s *Store) DeleteProfile(ctx context.Context, bankID, userID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM user_profiles WHERE bank_id = $1 AND id = $2`, bankID, userID)
	return execExpectOne(tag, err, "delete profile %d:%d", bankID, userID)
}

func (s *Store) ProfileExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_profiles WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("profile exists %d: %w", id, err)
	}
	return exists, nil
}

func scanProfile(row scannable) (profile.Profile, error) {
	var (
		p     profile.Profile
		email *string
	)
	if err := row.Scan(&p.ID, &p.BankID, &p.FirstName, &p.LastName, &email); err != nil {
		return p, err
	}
	if email != nil {
		p.Email = *email
	}
	return p, nil
}
