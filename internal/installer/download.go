package installer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/actionkit/actionkit/logger"
	"github.com/actionkit/actionkit/version"
	"github.com/buildkite/roko"
	"github.com/dustin/go-humanize"
)

const (
	downloadAttempts = 3
	downloadInterval = 2 * time.Second
	downloadTimeout  = 60 * time.Second

	// Install scripts are small. Anything bigger is not what we asked for.
	maxScriptSize = 10 << 20
)

// ErrInsecureURL is returned for any download or redirect that is not HTTPS.
var ErrInsecureURL = errors.New("refusing to download over a non-HTTPS URL")

// Downloader fetches install scripts and signing keys over HTTPS only,
// with TLS 1.2 or newer, retrying a bounded number of times.
type Downloader struct {
	Client *http.Client
	Logger logger.Logger

	attempts int
	interval time.Duration
	sleep    func(time.Duration)
}

// NewDownloader returns a Downloader with the hardened default client.
func NewDownloader(l logger.Logger) *Downloader {
	return &Downloader{
		Client:   NewClient(),
		Logger:   l,
		attempts: downloadAttempts,
		interval: downloadInterval,
	}
}

// NewClient returns an http.Client that speaks TLS 1.2 or newer and will
// not follow a redirect off HTTPS.
func NewClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	return &http.Client{
		Transport:     transport,
		Timeout:       downloadTimeout,
		CheckRedirect: checkRedirect,
	}
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	if req.URL.Scheme != "https" {
		return fmt.Errorf("%w: redirect to %s", ErrInsecureURL, req.URL.Redacted())
	}
	return nil
}

// Fetch downloads rawURL and returns the body.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing download URL %q: %w", rawURL, err)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrInsecureURL, u.Redacted())
	}

	l := d.Logger
	if l == nil {
		l = logger.Discard
	}

	var body []byte
	err = d.retrier().DoWithContext(ctx, func(r *roko.Retrier) error {
		b, err := d.fetchOnce(ctx, u)
		if err != nil {
			if errors.Is(err, ErrInsecureURL) {
				r.Break()
			}
			l.Warn("Downloading %s failed: %v (%s)", u.Redacted(), err, r)
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", u.Redacted(), err)
	}

	l.Debug("Downloaded %s (%s)", u.Redacted(), humanize.Bytes(uint64(len(body))))
	return body, nil
}

func (d *Downloader) retrier() *roko.Retrier {
	attempts := d.attempts
	if attempts <= 0 {
		attempts = downloadAttempts
	}

	if d.sleep != nil {
		return roko.NewRetrier(
			roko.WithMaxAttempts(attempts),
			roko.WithStrategy(roko.Constant(d.interval)),
			roko.WithSleepFunc(d.sleep),
		)
	}
	return roko.NewRetrier(
		roko.WithMaxAttempts(attempts),
		roko.WithStrategy(roko.Constant(d.interval)),
	)
}

func (d *Downloader) fetchOnce(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	client := d.Client
	if client == nil {
		client = NewClient()
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // Body is fully read or discarded

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxScriptSize {
		return nil, fmt.Errorf("response larger than %s", humanize.Bytes(maxScriptSize))
	}
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}
	return body, nil
}
