package model

import "time"

// User is a Telegram account that owns habits. Each user has an independent
// notification quota, the way each phone had its own in the mobile app.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Habits     []Habit `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// ChatID is the private chat notifications are delivered to.
func (u User) ChatID() int64 {
	return u.TelegramID
}
