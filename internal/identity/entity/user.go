package entity

import "time"

type User struct {
	ID           int64
	PhoneNumber  string
	FirstName    string
	LastName     string
	MiddleName   string
	BirthDate    time.Time
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type RefreshToken struct {
	ID         int64
	UserID     int64
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *int64
	CreatedAt  time.Time
}

func (t RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// BlacklistEntry is a logged out access token.
type BlacklistEntry struct {
	TokenDigest   string
	JTI           string
	UserID        int64
	Reason        string
	BlacklistedAt time.Time
	ExpiresAt     time.Time
}
