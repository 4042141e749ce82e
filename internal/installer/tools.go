package installer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/actionkit/actionkit/internal/shell"
)

const (
	DopplerInstallURL = "https://cli.doppler.com/install.sh"

	onePasswordKeyURL    = "https://downloads.1password.com/linux/keys/1password.asc"
	onePasswordPolicyURL = "https://downloads.1password.com/linux/debian/debsig/1password.pol"
	onePasswordRepoURL   = "https://downloads.1password.com/linux/debian"
	onePasswordKeyID     = "AC2D62742012EA22"

	onePasswordArchiveKeyring = "/usr/share/keyrings/1password-archive-keyring.gpg"
	onePasswordSourcesList    = "/etc/apt/sources.list.d/1password.list"
)

// Doppler installs the Doppler CLI with its install script.
func (i *Installer) Doppler(ctx context.Context) error {
	return i.RunScript(ctx, DopplerInstallURL)
}

// OnePassword installs the 1Password CLI, op. Linux runners get it from
// 1Password's apt repository and macOS runners from Homebrew.
func (i *Installer) OnePassword(ctx context.Context) error {
	switch goos := i.goos(); goos {
	case "linux":
		return i.onePasswordApt(ctx)
	case "darwin":
		return i.Exec.Run(ctx, shell.Command{
			Name: "brew",
			Args: []string{"install", "--cask", "1password-cli"},
		})
	default:
		return fmt.Errorf("%w for the 1Password CLI: %s", ErrUnsupportedOS, goos)
	}
}

func (i *Installer) onePasswordApt(ctx context.Context) error {
	key, err := i.downloader().Fetch(ctx, onePasswordKeyURL)
	if err != nil {
		return err
	}
	policy, err := i.downloader().Fetch(ctx, onePasswordPolicyURL)
	if err != nil {
		return err
	}

	policyDir := "/etc/debsig/policies/" + onePasswordKeyID
	keyringDir := "/usr/share/debsig/keyrings/" + onePasswordKeyID
	repo := fmt.Sprintf("deb [arch=%s signed-by=%s] %s/%s stable main\n",
		i.goarch(), onePasswordArchiveKeyring, onePasswordRepoURL, i.goarch())

	steps := []shell.Command{
		{Name: "gpg", Args: []string{"--batch", "--yes", "--dearmor", "--output", onePasswordArchiveKeyring}, Stdin: bytes.NewReader(key)},
		{Name: "tee", Args: []string{onePasswordSourcesList}, Stdin: bytes.NewReader([]byte(repo))},
		{Name: "mkdir", Args: []string{"-p", policyDir}},
		{Name: "tee", Args: []string{policyDir + "/1password.pol"}, Stdin: bytes.NewReader(policy)},
		{Name: "mkdir", Args: []string{"-p", keyringDir}},
		{Name: "gpg", Args: []string{"--batch", "--yes", "--dearmor", "--output", keyringDir + "/debsig.gpg"}, Stdin: bytes.NewReader(key)},
		{Name: "apt-get", Args: []string{"update"}},
		{Name: "apt-get", Args: []string{"install", "-y", "1password-cli"}},
	}

	for _, step := range steps {
		if err := i.Exec.Run(ctx, i.privileged(step)); err != nil {
			return err
		}
	}
	return nil
}
