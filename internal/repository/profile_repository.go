package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository stores KYC profiles with their bank and identity rows.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create writes the profile and its attached rows in one transaction.
func (r *ProfileRepository) Create(ctx context.Context, profile *Profile) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(profile).Error; err != nil {
			return err
		}
		if profile.Bank != nil {
			profile.Bank.ProfileID = profile.ID
			if err := tx.Create(profile.Bank).Error; err != nil {
				return err
			}
		}
		if profile.PersonalCard != nil {
			profile.PersonalCard.ProfileID = profile.ID
			if err := tx.Create(profile.PersonalCard).Error; err != nil {
				return err
			}
		}
		if profile.Passport != nil {
			profile.Passport.ProfileID = profile.ID
			if err := tx.Create(profile.Passport).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err)
}

// Find loads a profile with its attached rows.
func (r *ProfileRepository) Find(ctx context.Context, id string) (*Profile, error) {
	var profile Profile
	err := r.db.WithContext(ctx).
		Preload("Bank").Preload("PersonalCard").Preload("Passport").
		First(&profile, "profile_id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

// FindByUser lists the profiles of a user, newest first.
func (r *ProfileRepository) FindByUser(ctx context.Context, userID string) ([]Profile, error) {
	var profiles []Profile
	err := r.db.WithContext(ctx).
		Preload("Bank").Preload("PersonalCard").Preload("Passport").
		Where("user_id = ?", userID).Order("created_at DESC").
		Find(&profiles).Error
	return profiles, err
}

