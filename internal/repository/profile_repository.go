package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/google/uuid"

	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/apperr"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/model"
)

// ProfileUpdate carries a partial profile update; nil fields are left
// untouched.
type ProfileUpdate struct {
	DisplayName *string
	AvatarURL   *string
	Timezone    *string
	Preferences *model.Preferences
}

// ProfileRepository handles account profiles.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Ensure finds the profile for an authenticated identity, creating it with
// default preferences and the starter categories on first touch.
func (r *ProfileRepository) Ensure(ctx context.Context, userID, email string) (*model.Profile, error) {
	var profile model.Profile
	db := r.db.WithContext(ctx)
	err := db.Where("id = ?", userID).First(&profile).Error
	switch {
	case err == nil:
		return &profile, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		profile = model.Profile{
			ID:          userID,
			Email:       email,
			Timezone:    "UTC",
			Preferences: model.DefaultPreferences(),
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&profile).Error; err != nil {
				return err
			}
			for i, seed := range model.DefaultCategories() {
				emoji := seed.Emoji
				category := model.Category{
					ID:        uuid.NewString(),
					UserID:    userID,
					Name:      seed.Name,
					Color:     seed.Color,
					Emoji:     &emoji,
					SortOrder: i,
				}
				if err := tx.Create(&category).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, apperr.Storage(err, "create profile")
		}
		return &profile, nil
	default:
		return nil, apperr.Storage(err, "find profile")
	}
}

func (r *ProfileRepository) FindByID(ctx context.Context, userID string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&profile).Error
	switch {
	case err == nil:
		return &profile, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.NotFound("profile %s not found", userID)
	default:
		return nil, apperr.Storage(err, "find profile")
	}
}

func (r *ProfileRepository) Update(ctx context.Context, userID string, update ProfileUpdate) (*model.Profile, error) {
	updates := map[string]interface{}{}
	if update.DisplayName != nil {
		updates["display_name"] = *update.DisplayName
	}
	if update.AvatarURL != nil {
		updates["avatar_url"] = *update.AvatarURL
	}
	if update.Timezone != nil {
		updates["timezone"] = *update.Timezone
	}

	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&model.Profile{}).
			Where("id = ?", userID).Updates(updates)
		if res.Error != nil {
			return nil, apperr.Storage(res.Error, "update profile")
		}
		if res.RowsAffected == 0 {
			return nil, apperr.NotFound("profile %s not found", userID)
		}
	}
	if update.Preferences != nil {
		// Preferences go through Select so the JSON serializer runs.
		res := r.db.WithContext(ctx).Model(&model.Profile{ID: userID}).
			Select("preferences").Updates(model.Profile{Preferences: *update.Preferences})
		if res.Error != nil {
			return nil, apperr.Storage(res.Error, "update preferences")
		}
	}
	return r.FindByID(ctx, userID)
}

// ListIDs returns every known user id. Feeds the nightly rollover job.
func (r *ProfileRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.Profile{}).
		Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, apperr.Storage(err, "list profiles")
	}
	return ids, nil
}
