package models

import "time"

// User is an administrative account of the back office.
type User struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"` // hash bcrypt, jamais le mot de passe en clair
	Prenom    string
	Nom       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
