package aws

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sso"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"awsnav/importer"
	"awsnav/logging"
)

const (
	defaultPollInterval = 5 * time.Second
	slowDownIncrement   = 5 * time.Second
	deviceGrantType     = "urn:ietf:params:oauth:grant-type:device_code"
)

type ssoAPI interface {
	ListAccounts(ctx context.Context, params *sso.ListAccountsInput, optFns ...func(*sso.Options)) (*sso.ListAccountsOutput, error)
	ListAccountRoles(ctx context.Context, params *sso.ListAccountRolesInput, optFns ...func(*sso.Options)) (*sso.ListAccountRolesOutput, error)
}

type oidcAPI interface {
	RegisterClient(ctx context.Context, params *ssooidc.RegisterClientInput, optFns ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error)
	StartDeviceAuthorization(ctx context.Context, params *ssooidc.StartDeviceAuthorizationInput, optFns ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error)
	CreateToken(ctx context.Context, params *ssooidc.CreateTokenInput, optFns ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error)
}

type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Client wraps AWS service clients
type Client struct {
	region        string
	ssoClient     ssoAPI
	ssooidcClient oidcAPI
	stsClient     stsAPI

	// pollInterval is used when the device authorization does not suggest one
	pollInterval time.Duration
	slowDownStep time.Duration
}

// NewClient initializes AWS service clients for a specific region
func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return newClient(cfg), nil
}

// NewProfileClient initializes clients that authenticate as a named profile of the given config file
func NewProfileClient(ctx context.Context, profileName, configPath string) (*Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithSharedConfigProfile(profileName),
	}
	if configPath != "" {
		opts = append(opts, config.WithSharedConfigFiles([]string{configPath}))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config for profile %s: %w", profileName, err)
	}

	return newClient(cfg), nil
}

func newClient(cfg aws.Config) *Client {
	return &Client{
		region:        cfg.Region,
		ssoClient:     sso.NewFromConfig(cfg),
		ssooidcClient: ssooidc.NewFromConfig(cfg),
		stsClient:     sts.NewFromConfig(cfg),
		pollInterval:  defaultPollInterval,
		slowDownStep:  slowDownIncrement,
	}
}

// Region returns the configured AWS region
func (c *Client) Region() string {
	return c.region
}

// ListAccounts lists the AWS accounts the access token can reach
func (c *Client) ListAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	var accounts []Account
	var nextToken *string

	for {
		resp, err := c.ssoClient.ListAccounts(ctx, &sso.ListAccountsInput{
			AccessToken: aws.String(accessToken),
			NextToken:   nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list accounts: %w", err)
		}

		for _, acc := range resp.AccountList {
			accounts = append(accounts, Account{
				Name:      aws.ToString(acc.AccountName),
				AccountID: aws.ToString(acc.AccountId),
				Email:     aws.ToString(acc.EmailAddress),
			})
		}

		nextToken = resp.NextToken
		if nextToken == nil {
			break
		}
	}

	return accounts, nil
}

// ListAccountRoles lists available roles for a specific account
func (c *Client) ListAccountRoles(ctx context.Context, accessToken string, accountID string) ([]string, error) {
	var roles []string
	var nextToken *string

	for {
		resp, err := c.ssoClient.ListAccountRoles(ctx, &sso.ListAccountRolesInput{
			AccessToken: aws.String(accessToken),
			AccountId:   aws.String(accountID),
			NextToken:   nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list roles for account %s: %w", accountID, err)
		}

		for _, role := range resp.RoleList {
			roles = append(roles, aws.ToString(role.RoleName))
		}

		nextToken = resp.NextToken
		if nextToken == nil {
			break
		}
	}

	return roles, nil
}

// DiscoverGrants lists every account/role pair the access token can assume,
// sorted by account name and role
func (c *Client) DiscoverGrants(ctx context.Context, accessToken string) ([]importer.Grant, error) {
	accounts, err := c.ListAccounts(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(accounts, func(a, b Account) int {
		if n := strings.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		return strings.Compare(a.AccountID, b.AccountID)
	})

	var grants []importer.Grant
	for i, acc := range accounts {
		logging.Logger.Info("Listing roles", "account", acc.Name, "progress", fmt.Sprintf("%d/%d", i+1, len(accounts)))

		roles, err := c.ListAccountRoles(ctx, accessToken, acc.AccountID)
		if err != nil {
			return nil, err
		}
		slices.Sort(roles)

		for _, role := range roles {
			grants = append(grants, importer.Grant{
				AccountID:   acc.AccountID,
				AccountName: acc.Name,
				RoleName:    role,
			})
		}
	}

	return grants, nil
}

// StartSSOLogin initiates the SSO login process
func (c *Client) StartSSOLogin(ctx context.Context, startUrl string) (*SSOLoginInfo, error) {
	// Register client
	registerOutput, err := c.ssooidcClient.RegisterClient(ctx, &ssooidc.RegisterClientInput{
		ClientName: aws.String("awsnav"),
		ClientType: aws.String("public"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register OIDC client: %w", err)
	}

	// Start device authorization
	deviceAuthOutput, err := c.ssooidcClient.StartDeviceAuthorization(ctx, &ssooidc.StartDeviceAuthorizationInput{
		ClientId:     registerOutput.ClientId,
		ClientSecret: registerOutput.ClientSecret,
		StartUrl:     aws.String(startUrl),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start device authorization: %w", err)
	}

	return &SSOLoginInfo{
		VerificationUri:         aws.ToString(deviceAuthOutput.VerificationUri),
		VerificationUriComplete: aws.ToString(deviceAuthOutput.VerificationUriComplete),
		UserCode:                aws.ToString(deviceAuthOutput.UserCode),
		DeviceCode:              aws.ToString(deviceAuthOutput.DeviceCode),
		Interval:                deviceAuthOutput.Interval,
		ClientID:                aws.ToString(registerOutput.ClientId),
		ClientSecret:            aws.ToString(registerOutput.ClientSecret),
		RegistrationExpiresAt:   time.Unix(registerOutput.ClientSecretExpiresAt, 0),
		ExpiresAt:               time.Now().Add(time.Duration(deviceAuthOutput.ExpiresIn) * time.Second),
		StartUrl:                startUrl,
	}, nil
}

// WaitForToken polls CreateToken until the user approves the device authorization,
// the authorization expires, or ctx is done
func (c *Client) WaitForToken(ctx context.Context, info *SSOLoginInfo) (*Token, error) {
	interval := time.Duration(info.Interval) * time.Second
	if interval <= 0 {
		interval = c.pollInterval
	}

	for {
		tokenOutput, err := c.ssooidcClient.CreateToken(ctx, &ssooidc.CreateTokenInput{
			ClientId:     aws.String(info.ClientID),
			ClientSecret: aws.String(info.ClientSecret),
			DeviceCode:   aws.String(info.DeviceCode),
			GrantType:    aws.String(deviceGrantType),
		})
		if err == nil {
			if tokenOutput == nil || tokenOutput.AccessToken == nil {
				return nil, errors.New("create token returned no access token")
			}
			return &Token{
				AccessToken:  aws.ToString(tokenOutput.AccessToken),
				RefreshToken: aws.ToString(tokenOutput.RefreshToken),
				ExpiresAt:    time.Now().Add(time.Duration(tokenOutput.ExpiresIn) * time.Second),
			}, nil
		}

		var apiErr smithy.APIError
		if !errors.As(err, &apiErr) {
			return nil, fmt.Errorf("failed to create token: %w", err)
		}

		switch apiErr.ErrorCode() {
		case "AuthorizationPendingException":
		case "SlowDownException":
			interval += c.slowDownStep
		default:
			return nil, fmt.Errorf("failed to create token: %w", err)
		}

		if !info.ExpiresAt.IsZero() && time.Now().After(info.ExpiresAt) {
			return nil, errors.New("device authorization expired before it was approved")
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// CallerIdentity asks STS who the client's credentials belong to
func (c *Client) CallerIdentity(ctx context.Context) (*Identity, error) {
	out, err := c.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get caller identity: %w", err)
	}

	return &Identity{
		Account: aws.ToString(out.Account),
		Arn:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}

// GetAccountURL generates the AWS Console URL for a specific account and role using SSO
func GetAccountURL(startURL, accountID, roleName string) string {
	// Extract the portal URL from the start URL
	portalURL := strings.TrimSuffix(strings.TrimSuffix(startURL, "#/"), "/")
	portalURL = strings.TrimSuffix(portalURL, "/start")

	return fmt.Sprintf("%s/start/#/console?account_id=%s&role_name=%s", portalURL, accountID, roleName)
}
