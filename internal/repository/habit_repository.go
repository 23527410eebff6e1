package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"intent-bot/internal/model"
)

// ErrNotFound is returned when a habit does not exist for the user.
var ErrNotFound = errors.New("repository: not found")

// HabitRepository persists habits.
type HabitRepository struct {
	db *gorm.DB
}

func NewHabitRepository(db *gorm.DB) *HabitRepository {
	return &HabitRepository{db: db}
}

func (r *HabitRepository) Create(ctx context.Context, habit *model.Habit) error {
	if err := r.db.WithContext(ctx).Create(habit).Error; err != nil {
		return fmt.Errorf("create habit: %w", err)
	}
	return nil
}

// Save writes every column of an existing habit.
func (r *HabitRepository) Save(ctx context.Context, habit *model.Habit) error {
	if habit.ID == 0 {
		return fmt.Errorf("save habit: missing id")
	}
	if err := r.db.WithContext(ctx).Save(habit).Error; err != nil {
		return fmt.Errorf("save habit: %w", err)
	}
	return nil
}

// Delete removes a habit. Deleting a habit that is already gone succeeds.
func (r *HabitRepository) Delete(ctx context.Context, userID, habitID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, habitID).
		Delete(&model.Habit{}).Error; err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	return nil
}

func (r *HabitRepository) FindByID(ctx context.Context, userID, habitID uint) (*model.Habit, error) {
	var habit model.Habit
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, habitID).First(&habit).Error
	switch {
	case err == nil:
		return &habit, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("find habit: %w", err)
	}
}

// ListByUser returns the user's habits, most recently saved first.
func (r *HabitRepository) ListByUser(ctx context.Context, userID uint) ([]model.Habit, error) {
	var habits []model.Habit
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("date_added DESC, id DESC").
		Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	return habits, nil
}
