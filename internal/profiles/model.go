package profiles

import (
	"strings"
	"time"
)

// Identity captures the mapping between a canonical Inkstone user id and a
// provider-specific login.
type Identity struct {
	Provider    string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null"`
	UserID      string    `gorm:"column:user_id;size:190;not null;index"`
	Email       string    `gorm:"column:user_email;size:320"`
	DisplayName string    `gorm:"column:user_display_name;size:320"`
	AvatarURL   string    `gorm:"column:user_avatar_url;size:512"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at;autoUpdateTime"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user identities.
func (Identity) TableName() string {
	return "user_identities"
}

// Profile holds the user-editable settings surfaced on the settings screen.
type Profile struct {
	UserID              string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	FullName            string    `gorm:"column:full_name;size:320"`
	Bio                 string    `gorm:"column:bio;type:text"`
	AIExtractionEnabled bool      `gorm:"column:ai_extraction_enabled;not null;default:true"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing profiles.
func (Profile) TableName() string {
	return "profiles"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
