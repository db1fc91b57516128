package store

import "time"

// Status is the persisted lifecycle phase of a unit.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusResting Status = "resting"
	StatusCaptcha Status = "captcha"
)

// Level is the severity tier of a log entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Account is one automated chat session and its running statistics.
type Account struct {
	ID             uint     `gorm:"primaryKey" json:"id"`
	Name           string   `gorm:"size:128;not null" json:"name"`
	Token          string   `gorm:"type:text;not null" json:"token"`
	CatchChannelID string   `gorm:"size:64;not null" json:"catchChannelId"`
	SpamChannelID  string   `gorm:"size:64;not null" json:"spamChannelId"`
	SpamSpeed      int      `gorm:"not null;default:3000" json:"spamSpeed"`
	CatchSpeed     int      `gorm:"not null;default:2000" json:"catchSpeed"`
	Status         Status   `gorm:"size:16;not null;default:stopped;index" json:"status"`
	OwnerIDs       []string `gorm:"serializer:json" json:"ownerIds"`
	MarketID       *string  `gorm:"size:64" json:"marketId"`

	TotalCaught    int64 `gorm:"not null;default:0" json:"totalCaught"`
	TotalCoins     int64 `gorm:"not null;default:0" json:"totalCoins"`
	TotalShiny     int64 `gorm:"not null;default:0" json:"totalShiny"`
	TotalLegendary int64 `gorm:"not null;default:0" json:"totalLegendary"`
	TotalMythical  int64 `gorm:"not null;default:0" json:"totalMythical"`
	TotalNormal    int64 `gorm:"not null;default:0" json:"totalNormal"`

	CaptchaURL *string    `gorm:"type:text" json:"captchaUrl"`
	LastActive *time.Time `json:"lastActive"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// SpamInterval is the filler-message cadence.
func (a *Account) SpamInterval() time.Duration {
	return time.Duration(a.SpamSpeed) * time.Millisecond
}

// CatchInterval spaces consecutive catch attempts.
func (a *Account) CatchInterval() time.Duration {
	return time.Duration(a.CatchSpeed) * time.Millisecond
}

// IsOwner reports whether userID may drive in-chat commands for this account.
func (a *Account) IsOwner(userID string) bool {
	for _, id := range a.OwnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// LogEntry is an immutable operator-visible event.
type LogEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID *uint     `gorm:"index" json:"accountId"`
	Account   *Account  `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	Level     Level     `gorm:"column:type;size:16;not null" json:"type"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `gorm:"index;autoCreateTime" json:"timestamp"`
}

func (LogEntry) TableName() string { return "logs" }

// Column names accepted by UpdateAccount.
const (
	ColName           = "name"
	ColToken          = "token"
	ColCatchChannelID = "catch_channel_id"
	ColSpamChannelID  = "spam_channel_id"
	ColSpamSpeed      = "spam_speed"
	ColCatchSpeed     = "catch_speed"
	ColStatus         = "status"
	ColOwnerIDs       = "owner_ids"
	ColMarketID       = "market_id"
	ColTotalCaught    = "total_caught"
	ColTotalCoins     = "total_coins"
	ColTotalShiny     = "total_shiny"
	ColTotalLegendary = "total_legendary"
	ColTotalMythical  = "total_mythical"
	ColTotalNormal    = "total_normal"
	ColCaptchaURL     = "captcha_url"
	ColLastActive     = "last_active"
)

// Changes is a partial account update keyed by column name.
type Changes map[string]interface{}

// StatusChange builds the update for a lifecycle transition. The captcha URL
// is only kept for the captcha status.
func StatusChange(status Status, captchaURL string) Changes {
	c := Changes{ColStatus: status, ColCaptchaURL: nil}
	if status == StatusCaptcha {
		c[ColCaptchaURL] = captchaURL
	}
	return c
}
