package models

// WaitlistEntry is one accepted signup. Rows are written once per distinct
// email and never updated.
type WaitlistEntry struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	Email     string `gorm:"not null;uniqueIndex:idx_waitlist_email" json:"email"`
	Source    string `gorm:"not null;default:unknown" json:"source"`
	ClientIP  string `gorm:"column:ip;not null;default:''" json:"ip"`
	UserAgent string `gorm:"column:ua;not null;default:''" json:"ua"`
	// ISO-8601 UTC with milliseconds, kept as text.
	CreatedAt string `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
}

func (WaitlistEntry) TableName() string {
	return "waitlist"
}
