package installer

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/actionkit/actionkit/internal/shell"
	"github.com/actionkit/actionkit/logger"
	"github.com/google/go-cmp/cmp"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scriptURL = "https://example.com/install.sh"

func newTestDownloader(t *testing.T) (*Downloader, *httpmock.MockTransport, *[]time.Duration) {
	t.Helper()

	mock := httpmock.NewMockTransport()
	var sleeps []time.Duration

	return &Downloader{
		Client:   &http.Client{Transport: mock, CheckRedirect: checkRedirect},
		Logger:   logger.NewBuffer(),
		attempts: downloadAttempts,
		interval: downloadInterval,
		sleep:    func(d time.Duration) { sleeps = append(sleeps, d) },
	}, mock, &sleeps
}

func TestFetch(t *testing.T) {
	t.Parallel()

	d, mock, sleeps := newTestDownloader(t)
	mock.RegisterResponder(http.MethodGet, scriptURL, httpmock.NewStringResponder(http.StatusOK, "#!/bin/sh\necho installed\n"))

	body, err := d.Fetch(context.Background(), scriptURL)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho installed\n", string(body))
	assert.Empty(t, *sleeps)
}

func TestFetchRetriesThenFails(t *testing.T) {
	t.Parallel()

	d, mock, sleeps := newTestDownloader(t)
	mock.RegisterResponder(http.MethodGet, scriptURL, httpmock.NewStringResponder(http.StatusBadGateway, "nope"))

	_, err := d.Fetch(context.Background(), scriptURL)
	require.Error(t, err)

	assert.Equal(t, 3, mock.GetCallCountInfo()["GET "+scriptURL])
	if diff := cmp.Diff([]time.Duration{2 * time.Second, 2 * time.Second}, *sleeps); diff != "" {
		t.Errorf("sleeps diff (-want +got)\n%s", diff)
	}
}

func TestFetchRecoversAfterFailure(t *testing.T) {
	t.Parallel()

	d, mock, _ := newTestDownloader(t)
	calls := 0
	mock.RegisterResponder(http.MethodGet, scriptURL, func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return httpmock.NewStringResponse(http.StatusServiceUnavailable, ""), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, "echo ok"), nil
	})

	body, err := d.Fetch(context.Background(), scriptURL)
	require.NoError(t, err)
	assert.Equal(t, "echo ok", string(body))
	assert.Equal(t, 2, calls)
}

func TestFetchRejectsPlainHTTP(t *testing.T) {
	t.Parallel()

	d, mock, _ := newTestDownloader(t)

	_, err := d.Fetch(context.Background(), "http://example.com/install.sh")
	assert.ErrorIs(t, err, ErrInsecureURL)
	assert.Zero(t, mock.GetTotalCallCount())
}

func TestFetchRejectsRedirectToPlainHTTP(t *testing.T) {
	t.Parallel()

	d, mock, sleeps := newTestDownloader(t)
	mock.RegisterResponder(http.MethodGet, scriptURL, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusFound, "")
		resp.Header.Set("Location", "http://example.com/install.sh")
		return resp, nil
	})

	_, err := d.Fetch(context.Background(), scriptURL)
	assert.ErrorIs(t, err, ErrInsecureURL)
	assert.Empty(t, *sleeps, "insecure redirects should not be retried")
}

func TestNewClientRequiresTLS12(t *testing.T) {
	t.Parallel()

	transport, ok := NewClient().Transport.(*http.Transport)
	require.True(t, ok)
	assert.GreaterOrEqual(t, transport.TLSClientConfig.MinVersion, uint16(0x0303))
}

func newTestInstaller(t *testing.T, goos string, root bool, installed ...string) (*Installer, *shell.Fake, *httpmock.MockTransport) {
	t.Helper()

	d, mock, _ := newTestDownloader(t)
	fake := shell.NewFake(installed...)

	return &Installer{
		Exec:       fake,
		Downloader: d,
		Logger:     logger.NewBuffer(),
		GOOS:       goos,
		GOARCH:     "amd64",
		IsRoot:     func() bool { return root },
	}, fake, mock
}

func TestRunScriptUsesSudoWhenNotRoot(t *testing.T) {
	t.Parallel()

	i, fake, mock := newTestInstaller(t, "linux", false, "sudo", "sh")
	mock.RegisterResponder(http.MethodGet, DopplerInstallURL, httpmock.NewStringResponder(http.StatusOK, "echo doppler"))

	require.NoError(t, i.Doppler(context.Background()))
	require.Len(t, fake.Calls, 1)

	call := fake.Calls[0]
	assert.Equal(t, "sudo", call.Name)
	assert.Equal(t, []string{"sh", "-s", "--"}, call.Args)
	assert.Equal(t, "echo doppler", call.Stdin)
}

func TestRunScriptWithoutSudo(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name      string
		root      bool
		installed []string
	}{
		{name: "root", root: true, installed: []string{"sudo", "sh"}},
		{name: "no sudo", root: false, installed: []string{"sh"}},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			i, fake, mock := newTestInstaller(t, "linux", test.root, test.installed...)
			mock.RegisterResponder(http.MethodGet, scriptURL, httpmock.NewStringResponder(http.StatusOK, "echo hi"))

			require.NoError(t, i.RunScript(context.Background(), scriptURL, "-b", "/opt/bin"))
			require.Len(t, fake.Calls, 1)
			assert.Equal(t, "sh", fake.Calls[0].Name)
			assert.Equal(t, []string{"-s", "--", "-b", "/opt/bin"}, fake.Calls[0].Args)
		})
	}
}

func TestRunScriptDownloadFailureRunsNothing(t *testing.T) {
	t.Parallel()

	i, fake, mock := newTestInstaller(t, "linux", true, "sh")
	mock.RegisterResponder(http.MethodGet, scriptURL, httpmock.NewStringResponder(http.StatusNotFound, ""))

	require.Error(t, i.RunScript(context.Background(), scriptURL))
	assert.Empty(t, fake.Calls)
}

func TestOnePasswordUnsupportedOS(t *testing.T) {
	t.Parallel()

	i, fake, mock := newTestInstaller(t, "windows", true)

	err := i.OnePassword(context.Background())
	assert.ErrorIs(t, err, ErrUnsupportedOS)
	assert.Contains(t, err.Error(), "windows")
	assert.Empty(t, fake.Calls)
	assert.Zero(t, mock.GetTotalCallCount())
}

func TestOnePasswordDarwin(t *testing.T) {
	t.Parallel()

	i, fake, _ := newTestInstaller(t, "darwin", false, "brew", "sudo")

	require.NoError(t, i.OnePassword(context.Background()))
	require.Len(t, fake.Calls, 1)
	assert.Equal(t, "brew install --cask 1password-cli", fake.Calls[0].String())
}

func TestOnePasswordLinux(t *testing.T) {
	t.Parallel()

	i, fake, mock := newTestInstaller(t, "linux", true)
	mock.RegisterResponder(http.MethodGet, onePasswordKeyURL, httpmock.NewStringResponder(http.StatusOK, "-----BEGIN PGP PUBLIC KEY BLOCK-----"))
	mock.RegisterResponder(http.MethodGet, onePasswordPolicyURL, httpmock.NewStringResponder(http.StatusOK, "<Policy/>"))

	require.NoError(t, i.OnePassword(context.Background()))

	want := []string{"gpg", "tee", "mkdir", "tee", "mkdir", "gpg", "apt-get", "apt-get"}
	if diff := cmp.Diff(want, fake.Names()); diff != "" {
		t.Errorf("commands diff (-want +got)\n%s", diff)
	}

	assert.Equal(t,
		"deb [arch=amd64 signed-by=/usr/share/keyrings/1password-archive-keyring.gpg] https://downloads.1password.com/linux/debian/amd64 stable main\n",
		fake.Calls[1].Stdin)
	assert.Equal(t, "apt-get install -y 1password-cli", fake.Calls[7].String())
}

func TestOnePasswordLinuxStopsOnFailure(t *testing.T) {
	t.Parallel()

	i, fake, mock := newTestInstaller(t, "linux", true)
	mock.RegisterResponder(http.MethodGet, onePasswordKeyURL, httpmock.NewStringResponder(http.StatusOK, "key"))
	mock.RegisterResponder(http.MethodGet, onePasswordPolicyURL, httpmock.NewStringResponder(http.StatusOK, "policy"))
	fake.Handler = func(call shell.FakeCall) (shell.Result, error) {
		if call.Name == "apt-get" {
			return shell.Result{ExitCode: 100}, nil
		}
		return shell.Result{}, nil
	}

	err := i.OnePassword(context.Background())
	assert.Equal(t, 100, shell.ExitCode(err))
	assert.Equal(t, "apt-get update", fake.Calls[len(fake.Calls)-1].String())
}

func TestEnsure(t *testing.T) {
	t.Parallel()

	t.Run("already installed", func(t *testing.T) {
		t.Parallel()

		i, _, _ := newTestInstaller(t, "linux", true, "doppler")
		p, err := i.Ensure(context.Background(), "doppler", func(context.Context) error {
			t.Fatal("install should not be called")
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "/usr/local/bin/doppler", p)
	})

	t.Run("installs when missing", func(t *testing.T) {
		t.Parallel()

		i, fake, _ := newTestInstaller(t, "linux", true)
		p, err := i.Ensure(context.Background(), "doppler", func(context.Context) error {
			fake.Install("doppler")
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "/usr/local/bin/doppler", p)
	})

	t.Run("still missing", func(t *testing.T) {
		t.Parallel()

		i, _, _ := newTestInstaller(t, "linux", true)
		_, err := i.Ensure(context.Background(), "doppler", func(context.Context) error { return nil })
		assert.Error(t, err)
	})

	t.Run("install fails", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		i, _, _ := newTestInstaller(t, "linux", true)
		_, err := i.Ensure(context.Background(), "doppler", func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	})
}
