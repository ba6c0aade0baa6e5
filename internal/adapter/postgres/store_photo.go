package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/userprofile/internal/domain"
	"github.com/Strob0t/userprofile/internal/domain/photo"
)

const constraintPhotoUser = "profile_photos_user_id_key"

func (s *Store) GetPhoto(ctx context.Context, userID int64) (*photo.Photo, error) {
	var p photo.Photo
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, content_type, photo_data, created_at, updated_at
		 FROM profile_photos WHERE user_id = $1`, userID).
		Scan(&p.ID, &p.UserID, &p.ContentType, &p.Data, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get photo user %d", userID)
	}
	return &p, nil
}

func (s *Store) CreatePhoto(ctx context.Context, p *photo.Photo) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO profile_photos (user_id, content_type, photo_data)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		p.UserID, p.ContentType, p.Data).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if uniqueViolation(err) == constraintPhotoUser {
		return fmt.Errorf("create photo user %d: %w", p.UserID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create photo user %d: %w", p.UserID, err)
	}
	return nil
}

func (s *Store) UpdatePhoto(ctx context.Context, p *photo.Photo) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE profile_photos SET content_type = $2, photo_data = $3, updated_at = now()
		 WHERE user_id = $1
		 RETURNING id, created_at, updated_at`,
		p.UserID, p.ContentType, p.Data).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return notFoundWrap(err, "update photo user %d", p.UserID)
	}
	return nil
}

func (s *Store) DeletePhoto(ctx context.Context, userID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profile_photos WHERE user_id = $1`, userID)
	return execExpectOne(tag, err, "delete photo user %d", userID)
}
