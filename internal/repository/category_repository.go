package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/apperr"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/model"
)

// CategoryInput carries the fields for creating a category.
type CategoryInput struct {
	Name      string
	Color     string
	Emoji     *string
	SortOrder *int
}

// CategoryUpdate carries a partial update; nil fields are left untouched.
type CategoryUpdate struct {
	Name      *string
	Color     *string
	Emoji     *string
	SortOrder *int
}

// CategoryRepository manages user-scoped categories.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) Create(ctx context.Context, userID string, input CategoryInput) (*model.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperr.Validation("category name is required")
	}
	if len([]rune(name)) > model.MaxCategoryNameLen {
		return nil, apperr.Validation("category name exceeds %d characters", model.MaxCategoryNameLen)
	}

	db := r.db.WithContext(ctx)
	sortOrder := 0
	if input.SortOrder != nil {
		sortOrder = *input.SortOrder
	} else {
		// Append to the end of the active list.
		var max *int
		if err := db.Model(&model.Category{}).Where("user_id = ?", userID).
			Select("MAX(sort_order)").Scan(&max).Error; err == nil && max != nil {
			sortOrder = *max + 1
		}
	}

	category := model.Category{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Color:     input.Color,
		Emoji:     input.Emoji,
		SortOrder: sortOrder,
	}
	if err := db.Create(&category).Error; err != nil {
		return nil, apperr.Storage(err, "create category")
	}
	return &category, nil
}

// ListActive returns the user's non-archived categories by sort order.
func (r *CategoryRepository) ListActive(ctx context.Context, userID string) ([]model.Category, error) {
	var categories []model.Category
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_archived = ?", userID, false).
		Order("sort_order ASC").
		Find(&categories).Error; err != nil {
		return nil, apperr.Storage(err, "list categories")
	}
	return categories, nil
}

// ListAll returns every category for the user, archived included. Used by
// the export snapshot.
func (r *CategoryRepository) ListAll(ctx context.Context, userID string) ([]model.Category, error) {
	var categories []model.Category
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("sort_order ASC").Find(&categories).Error; err != nil {
		return nil, apperr.Storage(err, "list all categories")
	}
	return categories, nil
}

func (r *CategoryRepository) FindByID(ctx context.Context, userID, id string) (*model.Category, error) {
	var category model.Category
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&category).Error
	switch {
	case err == nil:
		return &category, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.NotFound("category %s not found", id)
	default:
		return nil, apperr.Storage(err, "find category")
	}
}

func (r *CategoryRepository) Update(ctx context.Context, userID, id string, update CategoryUpdate) (*model.Category, error) {
	updates := map[string]interface{}{}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperr.Validation("category name is required")
		}
		if len([]rune(name)) > model.MaxCategoryNameLen {
			return nil, apperr.Validation("category name exceeds %d characters", model.MaxCategoryNameLen)
		}
		updates["name"] = name
	}
	if update.Color != nil {
		updates["color"] = *update.Color
	}
	if update.Emoji != nil {
		updates["emoji"] = *update.Emoji
	}
	if update.SortOrder != nil {
		updates["sort_order"] = *update.SortOrder
	}

	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&model.Category{}).
			Where("user_id = ? AND id = ?", userID, id).Updates(updates)
		if res.Error != nil {
			return nil, apperr.Storage(res.Error, "update category")
		}
		if res.RowsAffected == 0 {
			return nil, apperr.NotFound("category %s not found", id)
		}
	}
	return r.FindByID(ctx, userID, id)
}

// Archive soft-deletes a category. Timeblocks and tasks keep their
// reference; active lists simply stop including it.
func (r *CategoryRepository) Archive(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Model(&model.Category{}).
		Where("user_id = ? AND id = ?", userID, id).
		Update("is_archived", true)
	if res.Error != nil {
		return apperr.Storage(res.Error, "archive category")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("category %s not found", id)
	}
	return nil
}

// requireCategory validates that a referenced category id exists for the
// user. Shared by the timeblock and task repositories.
func requireCategory(ctx context.Context, db *gorm.DB, userID, categoryID string) error {
	var count int64
	if err := db.WithContext(ctx).Model(&model.Category{}).
		Where("user_id = ? AND id = ?", userID, categoryID).
		Count(&count).Error; err != nil {
		return apperr.Storage(err, "check category")
	}
	if count == 0 {
		return apperr.Validation("unknown category %s", categoryID)
	}
	return nil
}
