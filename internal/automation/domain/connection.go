package domain

import "time"

// Provider names a linked external account
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderTelegram Provider = "telegram"
)

// Connection is the credential a user linked for one provider.
// ExternalID is the provider-side identity: the mailbox address for Google,
// the chat id for Telegram.
type Connection struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	UserID       string     `json:"user_id" gorm:"index:idx_connection_user_provider;not null"`
	Provider     Provider   `json:"provider" gorm:"index:idx_connection_user_provider;index:idx_connection_external;not null"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	ExpiresAt    *time.Time `json:"expires_at"`
	ExternalID   string     `json:"external_id" gorm:"index:idx_connection_external"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Connection) TableName() string {
	return "connections"
}

// Expired reports whether the access token must be refreshed before use.
// Connections without an expiry never expire.
func (c *Connection) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Credential is what an event source needs to act on a mailbox
type Credential struct {
	AccessToken string
	Account     string
}

// Credential projects the connection into the form event sources consume
func (c *Connection) Credential() Credential {
	return Credential{AccessToken: c.AccessToken, Account: c.ExternalID}
}
