package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_PrependsHTTPS(t *testing.T) {
	for _, in := range []string{"example.com", "sub.example.co.uk/path", "localhost:8080", "foo bar", "ftp://x"} {
		got := Normalize(in)
		if !strings.HasPrefix(got, "https://") {
			t.Fatalf("Normalize(%q) = %q, want https:// prefix", in, got)
		}
	}
	assert.Equal(t, "https://example.com", Normalize("  example.com "))
}

func TestNormalize_PassesThroughSchemes(t *testing.T) {
	for _, in := range []string{"http://example.com", "https://example.com/a?b=c", "HTTPS://Example.com"} {
		assert.Equal(t, in, Normalize(in))
	}
}

func TestTarget_Errors(t *testing.T) {
	_, err := Target("", true)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "domain", verr.Field)
	assert.ErrorIs(t, err, ErrEmptyDomain)

	_, err = Target("   ", true)
	assert.ErrorIs(t, err, ErrEmptyDomain)

	_, err = Target("example.com", false)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "authorized", verr.Field)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Contains(t, err.Error(), "authorization to scan this domain")
}

func TestTarget_OK(t *testing.T) {
	got, err := Target("example.com", true)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got)

	got, err = Target("http://example.com", true)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", got)
}

func TestPolicy_Check(t *testing.T) {
	p := Policy{DenyHosts: []string{"*.gov", "localhost", "*.internal"}}

	assert.ErrorIs(t, p.Check("https://irs.gov"), ErrDeniedHost)
	assert.ErrorIs(t, p.Check("https://LOCALHOST:3000"), ErrDeniedHost)
	assert.ErrorIs(t, p.Check("https://db.corp.internal"), ErrDeniedHost)
	assert.NoError(t, p.Check("https://example.com"))

	// fully qualified names resolve to the same host
	assert.ErrorIs(t, p.Check("https://localhost."), ErrDeniedHost)
	assert.ErrorIs(t, p.Check("https://agency.gov./login"), ErrDeniedHost)
	assert.NoError(t, p.Check("https://example.com."))

	assert.NoError(t, Policy{}.Check("https://foo bar"))
	assert.Error(t, p.Check("https://foo bar"))
}

func TestPolicy_Validator(t *testing.T) {
	v := Policy{DenyHosts: []string{"*.gov"}}.Validator()

	_, err := v("example.gov", true)
	assert.ErrorIs(t, err, ErrDeniedHost)

	_, err = v("example.gov", false)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	got, err := v("example.com", true)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got)
}
