package models

import "time"

// User is an account that can authenticate and own rows in the other
// tables.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	Name         string    `json:"name" gorm:"not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// Serialize returns the row shape exposed by the generic table surface.
// The password hash never leaves the process.
func (u *User) Serialize() map[string]interface{} {
	return map[string]interface{}{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"created_at": isoTime(u.CreatedAt),
	}
}

// Profile holds display attributes for a user. Its primary key is the
// owning user's id.
type Profile struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	FullName  *string   `json:"full_name"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the Profile model.
func (Profile) TableName() string {
	return "profiles"
}

// Serialize returns the generic row shape for a profile.
func (p *Profile) Serialize() map[string]interface{} {
	return map[string]interface{}{
		"id":         p.ID,
		"full_name":  strPtrOrNil(p.FullName),
		"avatar_url": strPtrOrNil(p.AvatarURL),
		"created_at": isoTime(p.CreatedAt),
	}
}

// Session maps a bearer token to a user. Sessions never expire in this
// demo backend; logout deletes the row.
type Session struct {
	Token     string    `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	CreatedAt time.Time
}

// TableName specifies the table name for the Session model.
func (Session) TableName() string {
	return "sessions"
}
