package aws

import "time"

// Account represents an AWS account accessible via SSO
type Account struct {
	Name      string
	AccountID string
	Email     string
}

// SSOLoginInfo contains information about an active SSO device authorization
type SSOLoginInfo struct {
	VerificationUri         string
	VerificationUriComplete string
	UserCode                string
	DeviceCode              string
	Interval                int32
	ClientID                string
	ClientSecret            string
	RegistrationExpiresAt   time.Time
	ExpiresAt               time.Time
	StartUrl                string
}

// Token is an SSO access token returned by CreateToken
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Identity is the caller identity STS reports for a profile
type Identity struct {
	Account string
	Arn     string
	UserID  string
}
