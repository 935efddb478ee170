package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTenants struct {
	slugs map[string]bool
	err   error
	calls int
}

func (f *fakeTenants) TenantExists(_ context.Context, slug string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.slugs[slug], nil
}

func newValidator(opts RedirectOptions) (*RedirectValidator, *fakeTenants) {
	ft := &fakeTenants{slugs: map[string]bool{"acme": true}}
	return NewRedirectValidator(ft, opts), ft
}

func TestValidate_PatternMatching(t *testing.T) {
	ctx := context.Background()
	v, _ := newValidator(DefaultRedirectOptions(true))
	patterns := []string{
		"https://app.example.com/cb",
		"https://{tenant}.example.com/cb",
		"https://*.apps.example.com/cb",
	}

	res := v.Validate(ctx, "https://app.example.com/cb", patterns)
	require.True(t, res.Valid)
	assert.Equal(t, patterns[0], res.MatchedPattern)
	assert.Empty(t, res.ExtractedTenant)

	res = v.Validate(ctx, "https://acme.example.com/cb", patterns)
	require.True(t, res.Valid, res.Reason)
	assert.Equal(t, "acme", res.ExtractedTenant)
	assert.Equal(t, patterns[1], res.MatchedPattern)

	res = v.Validate(ctx, "https://app1.apps.example.com/cb", patterns)
	require.True(t, res.Valid, res.Reason)
	assert.Equal(t, patterns[2], res.MatchedPattern)

	res = v.Validate(ctx, "https://evil.com/cb", patterns)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "does not match")
}

func TestValidate_UnknownTenantIsHardFailure(t *testing.T) {
	ctx := context.Background()
	v, _ := newValidator(DefaultRedirectOptions(true))
	patterns := []string{
		"https://{tenant}.example.com/cb",
		// would match if the tenant failure fell through
		"https://*.example.com/cb",
	}
	res := v.Validate(ctx, "https://ghost.example.com/cb", patterns)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, `"ghost" not found`)
}

func TestValidate_TenantLookupErrorFailsClosed(t *testing.T) {
	v, ft := newValidator(DefaultRedirectOptions(true))
	ft.err = errors.New("db down")
	res := v.Validate(context.Background(), "https://acme.example.com/cb", []string{"https://{tenant}.example.com/cb"})
	assert.False(t, res.Valid)
}

func TestValidate_TenantCheckDisabled(t *testing.T) {
	opts := DefaultRedirectOptions(true)
	opts.ValidateTenantExists = false
	v, ft := newValidator(opts)
	res := v.Validate(context.Background(), "https://anyone.example.com/cb", []string{"https://{tenant}.example.com/cb"})
	require.True(t, res.Valid)
	assert.Equal(t, "anyone", res.ExtractedTenant)
	assert.Zero(t, ft.calls)
}

func TestValidate_WildcardIsSingleLabel(t *testing.T) {
	v, _ := newValidator(DefaultRedirectOptions(true))
	p := []string{"https://*.example.com/cb"}
	ctx := context.Background()

	assert.True(t, v.Validate(ctx, "https://a-1.example.com/cb", p).Valid)
	assert.False(t, v.Validate(ctx, "https://a.b.example.com/cb", p).Valid)
	assert.False(t, v.Validate(ctx, "https://example.com/cb", p).Valid)
	assert.False(t, v.Validate(ctx, "https://a.example.com/cb/extra", p).Valid)
	assert.False(t, v.Validate(ctx, "https://a.exampleXcom/cb", p).Valid, "dots are literal")
}

func TestValidate_DangerousURIs(t *testing.T) {
	v, _ := newValidator(DefaultRedirectOptions(false))
	allowAll := []string{
		"javascript:alert(1)",
		"https://a.com/cb#frag",
		"https://a.com/%0d%0aSet-Cookie:x",
	}
	cases := []string{
		"",
		"   ",
		"javascript:alert(1)",
		"JavaScript:alert(1)",
		"data:text/html,<script>",
		"vbscript:msgbox",
		"file:///etc/passwd",
		"about:blank",
		"blob:https://a.com/x",
		"//evil.com/cb",
		"https://a.com/%2F%2Fevil.com",
		"https%3A%2F%2Fevil.com",
		"https://a.com\\@evil.com",
		"https://a.com/%5c",
		"https://a.com/\x00",
		"https://a.com/%00",
		"https://a.com/\r\nx",
		"https://a.com/%0d%0aSet-Cookie:x",
		"https://evil。com/cb",
		"https://evil．com/cb",
		"https://a.com／evil",
		"ftp://a.com/cb",
		"https://a.com/cb#frag",
		"https://",
	}
	for _, c := range cases {
		res := v.Validate(context.Background(), c, append(allowAll, c))
		assert.False(t, res.Valid, "%q should be rejected", c)
		assert.NotEmpty(t, res.Reason)
	}
}

func TestValidate_HTTPAndLocalhost(t *testing.T) {
	ctx := context.Background()
	dev, _ := newValidator(DefaultRedirectOptions(false))
	prod, _ := newValidator(DefaultRedirectOptions(true))

	assert.True(t, dev.Validate(ctx, "http://sub.localhost:5173/cb", []string{"http://*.localhost:5173/cb"}).Valid)
	assert.True(t, dev.Validate(ctx, "http://localhost:3000/cb", []string{"http://localhost:3000/cb"}).Valid)
	assert.True(t, dev.Validate(ctx, "http://127.0.0.1:3000/cb", []string{"http://127.0.0.1:3000/cb"}).Valid)
	assert.True(t, dev.Validate(ctx, "http://[::1]:3000/cb", []string{"http://[::1]:3000/cb"}).Valid)

	assert.False(t, dev.Validate(ctx, "http://app.example.com/cb", []string{"http://app.example.com/cb"}).Valid)
	res := prod.Validate(ctx, "http://localhost:3000/cb", []string{"http://localhost:3000/cb"})
	assert.False(t, res.Valid, "without AllowHTTP even localhost needs https")
	assert.Equal(t, "redirect_uri must use https", res.Reason)
}

func TestValidate_HostIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	v, _ := newValidator(DefaultRedirectOptions(true))
	patterns := []string{"https://{tenant}.example.com/cb"}

	res := v.Validate(ctx, "https://ACME.Example.com/cb", patterns)
	require.True(t, res.Valid, res.Reason)
	assert.Equal(t, "acme", res.ExtractedTenant)
	assert.Equal(t, patterns[0], res.MatchedPattern)

	res = v.Validate(ctx, "HTTPS://App.Example.COM/cb", []string{"https://app.example.com/cb"})
	assert.True(t, res.Valid, res.Reason)

	res = v.Validate(ctx, "https://x.APPS.example.com/cb", []string{"https://*.apps.example.com/cb"})
	assert.True(t, res.Valid, res.Reason)

	// the path keeps its case
	res = v.Validate(ctx, "https://acme.example.com/CB", patterns)
	assert.False(t, res.Valid)
}

func TestValidate_IPHosts(t *testing.T) {
	ctx := context.Background()
	v, _ := newValidator(DefaultRedirectOptions(true))
	p := []string{"https://10.0.0.5/cb"}
	assert.False(t, v.Validate(ctx, "https://10.0.0.5/cb", p).Valid)

	opts := DefaultRedirectOptions(true)
	opts.AllowIPAddresses = true
	v2, _ := newValidator(opts)
	assert.True(t, v2.Validate(ctx, "https://10.0.0.5/cb", p).Valid)
}

func TestValidatePatternForRegistration(t *testing.T) {
	valid := []string{
		"https://app.example.com/cb",
		"https://*.example.com/cb",
		"https://{tenant}.example.com/auth/callback",
		"http://*.localhost:5173/cb",
	}
	for _, p := range valid {
		assert.NoError(t, ValidatePatternForRegistration(p), p)
	}

	invalid := []string{
		"",
		"https://*",
		"https://*/cb",
		"https://*.*.example.com/cb",
		"https://{tenant}.*.example.com/cb",
		"https://{tenant}.{tenant}.example.com/cb",
		"https://app.*.example.com/cb",
		"https://app.example.com/*",
		"https://app.{tenant}.example.com/cb",
		"https://x*.example.com/cb",
		"ftp://*.example.com/cb",
		"not a url",
		"https://app.example.com/cb#x",
	}
	for _, p := range invalid {
		assert.Error(t, ValidatePatternForRegistration(p), p)
	}
}
