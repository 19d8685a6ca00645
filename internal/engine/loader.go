package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// SourceKind tags a BackupSource.
type SourceKind string

const (
	// SourceDirect means the archive bytes are already in hand.
	SourceDirect SourceKind = "DIRECT"
	// SourceOSSURL means the archive must be fetched from a public
	// HTTP(S) URL.
	SourceOSSURL SourceKind = "OSS_URL"
)

// BackupSource is where an archive comes from. Constructed per request and
// consumed once by the Loader.
type BackupSource struct {
	Kind             SourceKind
	Content          []byte
	URL              string
	ExpectedChecksum string
}

// DirectSource wraps bytes already in hand.
func DirectSource(content []byte) BackupSource {
	return BackupSource{Kind: SourceDirect, Content: content}
}

// URLSource points at a remote archive, optionally carrying the checksum a
// prior upload-init step recorded.
func URLSource(rawURL, expectedChecksum string) BackupSource {
	return BackupSource{Kind: SourceOSSURL, URL: rawURL, ExpectedChecksum: expectedChecksum}
}

// Loader retrieves archive bytes. Remote fetches follow redirects, refuse
// private network targets, and abort once the byte ceiling is exceeded
// rather than truncating silently.
type Loader struct {
	client       *http.Client
	limit        int64
	allowPrivate bool
	logger       Logger
}

// LoaderOptions tunes a Loader. Zero values select the defaults.
type LoaderOptions struct {
	// Limit is the byte ceiling for remote payloads. Defaults to
	// OSSImportLimit.
	Limit int64
	// Timeout bounds the whole fetch. Defaults to 60s.
	Timeout time.Duration
	// AllowPrivateHosts disables the private-network guard. Only for
	// tests and local development.
	AllowPrivateHosts bool
}

// NewLoader creates a Loader.
func NewLoader(opts LoaderOptions, logger Logger) *Loader {
	if opts.Limit <= 0 {
		opts.Limit = OSSImportLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	l := &Loader{
		limit:        opts.Limit,
		allowPrivate: opts.AllowPrivateHosts,
		logger:       logger,
	}
	l.client = &http.Client{
		Timeout: opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			// Every hop must satisfy the same reachability rules as the
			// original URL.
			return l.checkURL(req.URL)
		},
	}
	return l
}

// Load retrieves the archive bytes for a source.
func (l *Loader) Load(ctx context.Context, src BackupSource) ([]byte, error) {
	switch src.Kind {
	case SourceDirect:
		if len(src.Content) == 0 {
			return nil, fmt.Errorf("direct source has no content")
		}
		return src.Content, nil
	case SourceOSSURL:
		return l.fetch(ctx, src.URL)
	default:
		return nil, fmt.Errorf("unknown backup source kind %q", src.Kind)
	}
}

func (l *Loader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid archive URL: %w", err)
	}
	if err := l.checkURL(u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building archive request: %w", err)
	}

	l.logger.Debug("fetching remote archive", "url", u.String(), "limit", l.limit)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching archive: unexpected status %s", resp.Status)
	}

	// Read one byte past the limit so an oversized payload is detected
	// mid-stream instead of silently truncated.
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading archive body: %w", err)
	}
	if int64(len(data)) > l.limit {
		return nil, fmt.Errorf("%w: remote archive is larger than %d bytes", ErrSizeExceeded, l.limit)
	}

	l.logger.Debug("remote archive fetched", "bytes", len(data))
	return data, nil
}

// checkURL enforces that the target is a reachable public HTTP(S) host.
func (l *Loader) checkURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("archive URL must be http or https, got %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("archive URL has no host")
	}
	if l.allowPrivate {
		return nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("resolving archive host %q: %w", host, err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("archive host %q resolves to non-public address %s", host, ip)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
