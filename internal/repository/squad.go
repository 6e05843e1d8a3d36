package repository

import (
	"context"

	"squadfeed/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SquadRepository manages squads and their membership.
type SquadRepository interface {
	Create(ctx context.Context, squad *models.Squad, owner uint) error
	AddMember(ctx context.Context, squadID, userID uint, role models.SquadMemberRole) error
	ListMemberships(ctx context.Context, userID uint) ([]models.SquadMember, error)
}

type squadRepository struct {
	db *gorm.DB
}

// NewSquadRepository creates a new squad repository
func NewSquadRepository(db *gorm.DB) SquadRepository {
	return &squadRepository{db: db}
}

// Create inserts the squad and its owner membership atomically.
func (r *squadRepository) Create(ctx context.Context, squad *models.Squad, owner uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(squad).Error; err != nil {
			return err
		}
		return tx.Create(&models.SquadMember{SquadID: squad.ID, UserID: owner, Role: models.SquadRoleOwner}).Error
	})
}

// AddMember is idempotent: an existing membership is left untouched.
func (r *squadRepository) AddMember(ctx context.Context, squadID, userID uint, role models.SquadMemberRole) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.SquadMember{SquadID: squadID, UserID: userID, Role: role}).Error
}

func (r *squadRepository) ListMemberships(ctx context.Context, userID uint) ([]models.SquadMember, error) {
	var members []models.SquadMember
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("squad_id ASC").Find(&members).Error
	return members, err
}
