package validate

import (
	"errors"
	"net/url"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
)

var (
	ErrEmptyDomain   = errors.New("please enter a domain to scan")
	ErrNotAuthorized = errors.New("please confirm you have authorization to scan this domain")
	ErrDeniedHost    = errors.New("scanning this domain is not permitted")
)

// ValidationError is returned for input that must be corrected before any
// request is made. It is shown inline and never fails the session.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Normalize prepends https:// unless the domain already names http or https.
func Normalize(domain string) string {
	d := strings.TrimSpace(domain)
	lower := strings.ToLower(d)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return d
	}
	return "https://" + d
}

// Target validates a submitted domain and authorization attestation and
// returns the absolute URL to scan.
func Target(domain string, authorized bool) (string, error) {
	if strings.TrimSpace(domain) == "" {
		return "", &ValidationError{Field: "domain", Err: ErrEmptyDomain}
	}
	if !authorized {
		return "", &ValidationError{Field: "authorized", Err: ErrNotAuthorized}
	}
	return Normalize(domain), nil
}

// Policy is the acceptable-use deny list. DenyHosts are doublestar globs
// matched against the lower-cased hostname, e.g. "*.gov" or "localhost".
type Policy struct {
	DenyHosts []string
}

// Check rejects a normalized URL whose host matches a deny pattern. An empty
// policy accepts everything, including URLs it cannot parse.
func (p Policy) Check(target string) error {
	if len(p.DenyHosts) == 0 {
		return nil
	}
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return &ValidationError{Field: "domain", Err: ErrDeniedHost}
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	for _, pat := range p.DenyHosts {
		pat = strings.ToLower(strings.TrimSpace(pat))
		if pat == "" {
			continue
		}
		if ok, _ := doublestar.Match(pat, host); ok {
			return &ValidationError{Field: "domain", Err: ErrDeniedHost}
		}
	}
	return nil
}

// Validator runs Target followed by the policy check.
func (p Policy) Validator() func(domain string, authorized bool) (string, error) {
	return func(domain string, authorized bool) (string, error) {
		target, err := Target(domain, authorized)
		if err != nil {
			return "", err
		}
		if err := p.Check(target); err != nil {
			return "", err
		}
		return target, nil
	}
}
