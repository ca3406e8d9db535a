package domain

import "time"

// Login-log messages recorded by the identity resolver.
const (
	LoginMessageExisting = "User logged in"
	LoginMessageCreated  = "User created and logged in"
)

// UserIdentity is the durable record behind every authenticated caller.
// The resolver is the sole writer of LoginCount, LoginLog and UpdatedAt;
// profile fields may also be touched by the profile endpoints
// (last write wins).
type UserIdentity struct {
	ID             string       `bson:"_id" json:"id"`
	ExternalID     string       `bson:"external_id,omitempty" json:"externalId,omitempty"`
	Email          string       `bson:"email" json:"email"`
	DisplayName    string       `bson:"display_name,omitempty" json:"name,omitempty"`
	AvatarURL      string       `bson:"avatar_url,omitempty" json:"image,omitempty"`
	CredentialHash string       `bson:"credential_hash,omitempty" json:"-"`
	Verified       bool         `bson:"verified" json:"verified"`
	LoginCount     int64        `bson:"login_count" json:"loginCount"`
	LoginLog       []LoginEntry `bson:"login_log,omitempty" json:"loginLogs,omitempty"`
	CreatedAt      time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time    `bson:"updated_at" json:"updatedAt"`
}

// LoginEntry is one append-only login-log record. ID values are snowflake
// IDs, so they order by creation time and double as pagination cursors.
type LoginEntry struct {
	ID      int64     `bson:"id" json:"id"`
	At      time.Time `bson:"at" json:"date"`
	Message string    `bson:"message" json:"message"`
}

// ProfileUpdate carries the optional fields of an update-profile request.
// Nil pointers leave the stored value untouched.
type ProfileUpdate struct {
	DisplayName *string
	Email       *string
	AvatarURL   *string
}
