// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"codeberg.org/oliverandrich/bizcard-snap/internal/models"
)

// CreateCard stores a card. ID and CreatedAt are assigned when empty.
func (r *Repository) CreateCard(ctx context.Context, card *models.Card) error {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if card.CreatedAt == "" {
		card.CreatedAt = models.FormatTimestamp(time.Now())
	}
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO cards (id, owner, person_name, company_name, job_title, phone, email, address, qr_url, created_at)
		 VALUES (:id, :owner, :person_name, :company_name, :job_title, :phone, :email, :address, :qr_url, :created_at)`,
		card)
	return wrapError(err)
}

// GetCard retrieves one card of owner.
func (r *Repository) GetCard(ctx context.Context, owner, id string) (*models.Card, error) {
	var card models.Card
	err := r.db.GetContext(ctx, &card, `SELECT * FROM cards WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &card, nil
}

// ListCards returns all cards of owner, newest first.
func (r *Repository) ListCards(ctx context.Context, owner string) ([]models.Card, error) {
	cards := []models.Card{}
	err := r.db.SelectContext(ctx, &cards,
		`SELECT * FROM cards WHERE owner = ? ORDER BY created_at DESC, id DESC`, owner)
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// DeleteCard deletes one card of owner by ID.
func (r *Repository) DeleteCard(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteCardByTimestamp deletes the first card of owner whose creation
// timestamp equals createdAt exactly.
func (r *Repository) DeleteCardByTimestamp(ctx context.Context, owner, createdAt string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM cards WHERE id = (
			SELECT id FROM cards WHERE owner = ? AND created_at = ? ORDER BY id LIMIT 1
		)`, owner, createdAt)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// CountCards returns the number of cards of owner.
func (r *Repository) CountCards(ctx context.Context, owner string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM cards WHERE owner = ?`, owner)
	return count, err
}
