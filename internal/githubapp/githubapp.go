// Package githubapp authenticates as a GitHub App installation and derives
// the bot identity commits should be made as.
package githubapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/actionkit/actionkit/logger"
	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v69/github"
)

// DefaultAPIURL is the REST API of github.com.
const DefaultAPIURL = "https://api.github.com"

// Config identifies the app and where it is installed.
type Config struct {
	AppID      int64
	PrivateKey []byte

	// InstallationID is looked up from Owner and Repository when zero.
	InstallationID int64
	Owner          string
	Repository     string

	// APIURL is the REST API root. Empty means github.com.
	APIURL string
}

// Identity is an installation token and the bot user it acts as.
type Identity struct {
	Token     string
	ExpiresAt time.Time

	InstallationID int64
	AppSlug        string
	UserID         int64

	// Host is the web host git remotes point at, e.g. github.com.
	Host string
}

// BotLogin is the login of the app's bot user.
func (i *Identity) BotLogin() string {
	return i.AppSlug + "[bot]"
}

// GitUserName is the name commits by the app are attributed to.
func (i *Identity) GitUserName() string {
	return i.BotLogin()
}

// GitUserEmail is the noreply address GitHub links to the bot user.
func (i *Identity) GitUserEmail() string {
	return fmt.Sprintf("%d+%s@users.noreply.%s", i.UserID, i.BotLogin(), i.Host)
}

// Authenticator mints installation tokens.
type Authenticator struct {
	// Transport is the base transport. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Logger    logger.Logger
}

// Authenticate resolves the installation, mints a token for it and looks
// up the app's bot user.
func (a *Authenticator) Authenticate(ctx context.Context, cfg Config) (*Identity, error) {
	if cfg.AppID == 0 {
		return nil, errors.New("app id is required")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, errors.New("private key is required")
	}

	l := a.Logger
	if l == nil {
		l = logger.Discard
	}

	apiURL := strings.TrimSuffix(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	base := a.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	appTransport, err := ghinstallation.NewAppsTransport(base, cfg.AppID, cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create github app transport: %w", err)
	}
	appTransport.BaseURL = apiURL

	appClient, err := newClient(appTransport, apiURL)
	if err != nil {
		return nil, err
	}

	app, _, err := appClient.Apps.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get github app %d: %w", cfg.AppID, err)
	}
	slug := app.GetSlug()
	if slug == "" {
		return nil, fmt.Errorf("github app %d has no slug", cfg.AppID)
	}
	l.Debug("Authenticated as GitHub App %q", slug)

	installationID := cfg.InstallationID
	if installationID == 0 {
		installationID, err = findInstallation(ctx, appClient, cfg.Owner, cfg.Repository)
		if err != nil {
			return nil, err
		}
		l.Debug("Found installation %d for %s", installationID, strings.Trim(cfg.Owner+"/"+cfg.Repository, "/"))
	}

	itr := ghinstallation.NewFromAppsTransport(appTransport, installationID)
	itr.BaseURL = apiURL

	token, err := itr.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create installation token for installation %d: %w", installationID, err)
	}
	expiresAt, _, err := itr.Expiry()
	if err != nil {
		return nil, fmt.Errorf("failed to read installation token expiry: %w", err)
	}

	installationClient, err := newClient(itr, apiURL)
	if err != nil {
		return nil, err
	}

	id := &Identity{
		Token:          token,
		ExpiresAt:      expiresAt,
		InstallationID: installationID,
		AppSlug:        slug,
		Host:           webHost(apiURL),
	}

	user, _, err := installationClient.Users.Get(ctx, id.BotLogin())
	if err != nil {
		return nil, fmt.Errorf("failed to get bot user %s: %w", id.BotLogin(), err)
	}
	id.UserID = user.GetID()

	return id, nil
}

func newClient(rt http.RoundTripper, apiURL string) (*github.Client, error) {
	client := github.NewClient(&http.Client{Transport: rt})
	if apiURL == DefaultAPIURL {
		return client, nil
	}

	client, err := client.WithEnterpriseURLs(apiURL, apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create github enterprise client: %w", err)
	}
	return client, nil
}

// findInstallation tries the repository, then the owner as an
// organization, then the owner as a user.
func findInstallation(ctx context.Context, client *github.Client, owner, repo string) (int64, error) {
	if owner == "" {
		return 0, errors.New("an installation id or an owner is required")
	}

	if repo != "" {
		inst, _, err := client.Apps.FindRepositoryInstallation(ctx, owner, repo)
		if err != nil {
			return 0, fmt.Errorf("failed to find installation for %s/%s: %w", owner, repo, err)
		}
		return inst.GetID(), nil
	}

	inst, resp, err := client.Apps.FindOrganizationInstallation(ctx, owner)
	if err == nil {
		return inst.GetID(), nil
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return 0, fmt.Errorf("failed to find installation for organization %s: %w", owner, err)
	}

	inst, _, err = client.Apps.FindUserInstallation(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("failed to find installation for %s: %w", owner, err)
	}
	return inst.GetID(), nil
}

// webHost maps an API URL to the host git remotes use.
func webHost(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "github.com"
	}
	if host, ok := strings.CutPrefix(u.Host, "api."); ok {
		return host
	}
	return u.Host
}

// SplitRepository splits "owner/repo" as found in GITHUB_REPOSITORY.
func SplitRepository(s string) (owner, repo string) {
	owner, repo, _ = strings.Cut(s, "/")
	return owner, repo
}
