package domain

import "time"

type UserRole string

const (
	RolePatient   UserRole = "patient"
	RoleCaregiver UserRole = "caregiver"
)

type User struct {
	ID         int64
	TelegramID int64
	Name       string
	Role       UserRole
	CreatedAt  time.Time
}
