package validation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// TenantPlaceholder marks the tenant slug position in a registered pattern.
const TenantPlaceholder = "{tenant}"

// TenantLookup confirms that a tenant slug exists.
type TenantLookup interface {
	TenantExists(ctx context.Context, slug string) (bool, error)
}

// RedirectOptions tune request-time validation.
type RedirectOptions struct {
	// AllowHTTP permits http:// for localhost-like hosts only. When false,
	// http:// is rejected for every host, localhost and loopback included.
	AllowHTTP bool
	// AllowIPAddresses permits non-loopback IP literals as host.
	AllowIPAddresses bool
	// ValidateTenantExists checks {tenant} matches against TenantLookup.
	ValidateTenantExists bool
}

// DefaultRedirectOptions: http only outside production, no IPs, tenant check on.
func DefaultRedirectOptions(production bool) RedirectOptions {
	return RedirectOptions{AllowHTTP: !production, ValidateTenantExists: true}
}

// RedirectResult is the outcome of Validate.
type RedirectResult struct {
	Valid           bool
	Reason          string
	MatchedPattern  string
	ExtractedTenant string
}

func reject(reason string) RedirectResult { return RedirectResult{Reason: reason} }

var deniedSchemes = []string{"javascript:", "data:", "vbscript:", "file:", "about:", "blob:"}

// Matched against the lowercased URI.
var dangerousSubstrings = []string{
	"%2f%2f", "%3a%2f%2f", // encoded // and ://
	"\\", "%5c",
	"\x00", "%00",
	"\r", "\n", "%0d", "%0a",
	// characters that normalize to '.', '/', ':' or '@' under NFKC
	"․", "‥", "。", "．", "﹒",
	"／", "⁄", "∕",
	"：", "﹕",
	"＠", "﹫",
	"%e2%80%a4", "%e2%80%a5", "%e3%80%82", "%ef%bc%8e", "%ef%bc%8f", "%ef%bc%9a", "%ef%bc%a0",
}

const (
	tenantSlugGroup = `([a-z0-9-]+)`
	wildcardLabel   = `[a-zA-Z0-9-]+`
)

// RedirectValidator decides whether a redirect_uri is safe and registered.
type RedirectValidator struct {
	tenants TenantLookup
	opts    RedirectOptions

	regexps sync.Map // pattern -> *regexp.Regexp
}

// NewRedirectValidator builds a validator. tenants may be nil only when
// opts.ValidateTenantExists is false.
func NewRedirectValidator(tenants TenantLookup, opts RedirectOptions) *RedirectValidator {
	return &RedirectValidator{tenants: tenants, opts: opts}
}

// Options returns the validator's options.
func (v *RedirectValidator) Options() RedirectOptions { return v.opts }

// Validate checks candidate against the safety rules, then against patterns
// in order. The first failing rule short-circuits.
func (v *RedirectValidator) Validate(ctx context.Context, candidate string, patterns []string) RedirectResult {
	if res, ok := v.checkSafety(candidate); !ok {
		return res
	}

	// Scheme and host compare case-insensitively; the path does not.
	c := lowerOrigin(candidate)
	for _, p := range patterns {
		np := lowerOrigin(p)
		if c == np {
			return RedirectResult{Valid: true, MatchedPattern: p}
		}

		if strings.Contains(np, TenantPlaceholder) {
			re, err := v.compile(np)
			if err != nil {
				continue
			}
			m := re.FindStringSubmatch(c)
			if m == nil {
				continue
			}
			slug := m[1]
			if v.opts.ValidateTenantExists {
				if v.tenants == nil {
					return reject("tenant lookup unavailable")
				}
				exists, err := v.tenants.TenantExists(ctx, slug)
				if err != nil {
					return reject("unable to verify tenant")
				}
				if !exists {
					return RedirectResult{Reason: fmt.Sprintf("tenant %q not found", slug), MatchedPattern: p}
				}
			}
			return RedirectResult{Valid: true, MatchedPattern: p, ExtractedTenant: slug}
		}

		if strings.Count(np, "*") == 1 {
			re, err := v.compile(np)
			if err != nil {
				continue
			}
			if re.MatchString(c) {
				return RedirectResult{Valid: true, MatchedPattern: p}
			}
		}
	}
	return reject("redirect_uri does not match any registered pattern")
}

// checkSafety runs every rule that does not depend on registered patterns.
func (v *RedirectValidator) checkSafety(candidate string) (RedirectResult, bool) {
	if strings.TrimSpace(candidate) == "" {
		return reject("redirect_uri is required"), false
	}
	lower := strings.ToLower(strings.TrimSpace(candidate))
	for _, s := range deniedSchemes {
		if strings.HasPrefix(lower, s) {
			return reject("scheme not allowed: " + strings.TrimSuffix(s, ":")), false
		}
	}
	if strings.HasPrefix(lower, "//") {
		return reject("protocol-relative redirect_uri not allowed"), false
	}
	for _, d := range dangerousSubstrings {
		if strings.Contains(lower, d) {
			return reject("redirect_uri contains forbidden characters"), false
		}
	}
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return reject("redirect_uri must use http or https"), false
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return reject("redirect_uri is not a valid URL"), false
	}
	if strings.Contains(candidate, "#") {
		return reject("redirect_uri must not contain a fragment"), false
	}

	host := strings.ToLower(u.Hostname())
	local := isLocalhost(host)
	if strings.EqualFold(u.Scheme, "http") && !(v.opts.AllowHTTP && local) {
		return reject("redirect_uri must use https"), false
	}
	if ip := net.ParseIP(host); ip != nil && !ip.IsLoopback() && !v.opts.AllowIPAddresses {
		return reject("IP address hosts are not allowed"), false
	}
	return RedirectResult{}, true
}

// lowerOrigin lowercases everything up to the end of the authority.
func lowerOrigin(uri string) string {
	i := strings.Index(uri, "://")
	if i < 0 {
		return uri
	}
	end := len(uri)
	if j := strings.IndexAny(uri[i+3:], "/?"); j >= 0 {
		end = i + 3 + j
	}
	return strings.ToLower(uri[:end]) + uri[end:]
}

func isLocalhost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || host == "::1" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// compile builds and caches the regexp of a wildcard or {tenant} pattern.
func (v *RedirectValidator) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := v.regexps.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := patternRegexp(pattern)
	if err != nil {
		return nil, err
	}
	v.regexps.Store(pattern, re)
	return re, nil
}

var errPlaceholderPosition = errors.New("placeholder must start the first subdomain label")

func patternRegexp(pattern string) (*regexp.Regexp, error) {
	var token, group string
	switch {
	case strings.Contains(pattern, TenantPlaceholder):
		token, group = TenantPlaceholder, tenantSlugGroup
	case strings.Count(pattern, "*") == 1:
		token, group = "*", wildcardLabel
	default:
		return nil, errors.New("pattern has no placeholder")
	}
	if err := checkPlaceholderPosition(pattern, token); err != nil {
		return nil, err
	}
	quoted := regexp.QuoteMeta(pattern)
	quotedToken := regexp.QuoteMeta(token)
	expr := "^" + strings.Replace(quoted, quotedToken, group, 1) + "$"
	return regexp.Compile(expr)
}

// checkPlaceholderPosition requires scheme://<token>.<rest>.
func checkPlaceholderPosition(pattern, token string) error {
	i := strings.Index(pattern, "://")
	if i < 0 {
		return errors.New("pattern must include a scheme")
	}
	rest := pattern[i+3:]
	if !strings.HasPrefix(rest, token+".") {
		return errPlaceholderPosition
	}
	if strings.Count(pattern, token) != 1 {
		return errPlaceholderPosition
	}
	return nil
}

// ValidatePatternForRegistration checks a redirect URI pattern before it is
// stored on an application.
func ValidatePatternForRegistration(pattern string) error {
	p := strings.TrimSpace(pattern)
	if p == "" {
		return errors.New("pattern is required")
	}
	wild := strings.Count(p, "*")
	tenant := strings.Count(p, TenantPlaceholder)
	if wild > 1 {
		return errors.New("only one wildcard is allowed")
	}
	if tenant > 1 {
		return errors.New("only one {tenant} placeholder is allowed")
	}
	if wild > 0 && tenant > 0 {
		return errors.New("wildcard and {tenant} cannot be combined")
	}

	lower := strings.ToLower(p)
	if lower == "https://*" || lower == "http://*" || strings.HasPrefix(lower, "https://*/") || strings.HasPrefix(lower, "http://*/") {
		return errors.New("bare wildcard host is not allowed")
	}

	sample := p
	switch {
	case wild == 1:
		if err := checkPlaceholderPosition(p, "*"); err != nil {
			return fmt.Errorf("wildcard %w", err)
		}
		sample = strings.Replace(p, "*", "placeholder", 1)
	case tenant == 1:
		if err := checkPlaceholderPosition(p, TenantPlaceholder); err != nil {
			return fmt.Errorf("{tenant} %w", err)
		}
		sample = strings.Replace(p, TenantPlaceholder, "placeholder", 1)
	}

	u, err := url.Parse(sample)
	if err != nil || u.Host == "" {
		return errors.New("pattern is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("pattern must use http or https")
	}
	if u.Fragment != "" || strings.Contains(sample, "#") {
		return errors.New("pattern must not contain a fragment")
	}
	return nil
}
