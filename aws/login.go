package aws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"awsnav/importer"
	"awsnav/logging"
	"awsnav/profile"
	"awsnav/styles"
)

// CLILogin delegates authentication to the aws CLI
type CLILogin struct {
	// Binary defaults to "aws"
	Binary string
	// ConfigPath is exported as AWS_CONFIG_FILE when set
	ConfigPath string
	Stdout     io.Writer
	Stderr     io.Writer
}

// Login runs `aws sso login --profile <name>`. The CLI always starts a new
// authorization so force needs no extra handling.
func (l *CLILogin) Login(ctx context.Context, p profile.Profile, _ bool) error {
	return l.run(ctx, "--profile", p.Name)
}

// LoginSession runs `aws sso login --sso-session <name>`
func (l *CLILogin) LoginSession(ctx context.Context, session profile.SSOSession) error {
	return l.run(ctx, "--sso-session", session.Name)
}

func (l *CLILogin) run(ctx context.Context, args ...string) error {
	binary := l.Binary
	if binary == "" {
		binary = "aws"
	}

	args = append([]string{"sso", "login"}, args...)
	logging.Logger.Debug("Running login command", "binary", binary, "args", args)

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if l.ConfigPath != "" {
		cmd.Env = append(os.Environ(), "AWS_CONFIG_FILE="+l.ConfigPath)
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to run %s sso login: %w", binary, err)
	}

	return nil
}

// ClientFactory builds a client for an SSO region
type ClientFactory func(ctx context.Context, region string) (*Client, error)

// DeviceLogin authenticates through the OIDC device authorization flow and
// stores the token where the AWS CLI and SDKs look for it
type DeviceLogin struct {
	Cache     *TokenCache
	NewClient ClientFactory
	OpenURL   func(url string) error
	Out       io.Writer
}

// Login reuses a live cached token unless force is set
func (d *DeviceLogin) Login(ctx context.Context, p profile.Profile, force bool) error {
	if !force {
		if _, ok, err := d.Cache.AccessToken(p.CacheKey()); err == nil && ok {
			logging.Logger.Debug("Reusing cached SSO token", "profile", p.Name)
			return nil
		}
	}
	return d.login(ctx, p.CacheKey(), p.StartURL, p.Region)
}

// LoginSession authenticates a named sso-session
func (d *DeviceLogin) LoginSession(ctx context.Context, session profile.SSOSession) error {
	return d.login(ctx, session.Name, session.StartURL, session.Region)
}

func (d *DeviceLogin) login(ctx context.Context, key, startURL, region string) error {
	client, err := d.NewClient(ctx, region)
	if err != nil {
		return err
	}

	info, err := client.StartSSOLogin(ctx, startURL)
	if err != nil {
		return err
	}

	if d.Out != nil {
		fmt.Fprintln(d.Out, styles.VerificationBox.Render(fmt.Sprintf(
			"Confirm code %s at\n%s",
			styles.CodeBox.Render(info.UserCode),
			info.VerificationUri,
		)))
	}

	if d.OpenURL != nil {
		if err := d.OpenURL(info.VerificationUriComplete); err != nil {
			logging.Logger.Warn("Failed to open browser", "error", err)
		}
	}

	token, err := client.WaitForToken(ctx, info)
	if err != nil {
		return err
	}

	return d.Cache.Save(key, CachedToken{
		StartURL:              startURL,
		Region:                region,
		AccessToken:           token.AccessToken,
		ExpiresAt:             token.ExpiresAt.UTC().Format(time.RFC3339),
		ClientID:              info.ClientID,
		ClientSecret:          info.ClientSecret,
		RegistrationExpiresAt: info.RegistrationExpiresAt.UTC().Format(time.RFC3339),
		RefreshToken:          token.RefreshToken,
	})
}

// SessionLoginer logs in a whole sso-session rather than a single profile
type SessionLoginer interface {
	LoginSession(ctx context.Context, session profile.SSOSession) error
}

// SessionGrants discovers the grants of an sso-session, logging in first when
// no live token is cached
type SessionGrants struct {
	Cache     *TokenCache
	Login     SessionLoginer
	NewClient ClientFactory
}

// Grants lists every account/role pair the session can assume
func (g *SessionGrants) Grants(ctx context.Context, session profile.SSOSession) ([]importer.Grant, error) {
	token, ok, err := g.Cache.AccessToken(session.Name)
	if err != nil {
		logging.Logger.Warn("Ignoring unreadable token cache", "session", session.Name, "error", err)
	}

	if !ok {
		if err := g.Login.LoginSession(ctx, session); err != nil {
			return nil, err
		}
		token, ok, err = g.Cache.AccessToken(session.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no valid token cached for sso-session %s after login", session.Name)
		}
	}

	client, err := g.NewClient(ctx, session.Region)
	if err != nil {
		return nil, err
	}

	return client.DiscoverGrants(ctx, token)
}

// Console opens the SSO portal console for a profile's account and role
type Console struct {
	OpenURL func(url string) error
}

// Open launches the browser on the console URL of p
func (c Console) Open(_ context.Context, p profile.Profile) error {
	if p.StartURL == "" {
		return errors.New("profile has no sso start url")
	}

	url := GetAccountURL(p.StartURL, p.SSOAccountID, p.SSORoleName)
	logging.Logger.Debug("Opening console", "profile", p.Name, "url", url)

	if err := c.OpenURL(url); err != nil {
		return fmt.Errorf("failed to open console: %w", err)
	}
	return nil
}

// IdentityLookup asks STS which identity a profile resolves to
type IdentityLookup struct {
	ConfigPath string
}

// WhoAmI returns the caller identity of p
func (l IdentityLookup) WhoAmI(ctx context.Context, p profile.Profile) (*Identity, error) {
	client, err := NewProfileClient(ctx, p.Name, l.ConfigPath)
	if err != nil {
		return nil, err
	}
	return client.CallerIdentity(ctx)
}
