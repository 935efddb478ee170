package memory

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/authvital/internal/domain/repository"
	"github.com/dropDatabas3/authvital/internal/security/secret"
)

// Seed es el formato YAML de datos iniciales para el backend memory.
// Los tenants se referencian por slug y las aplicaciones por client_id.
type Seed struct {
	Tenants []struct {
		ID   string `yaml:"id"`
		Slug string `yaml:"slug"`
		Name string `yaml:"name"`
	} `yaml:"tenants"`

	Users []struct {
		ID            string `yaml:"id"`
		Email         string `yaml:"email"`
		EmailVerified bool   `yaml:"email_verified"`
		GivenName     string `yaml:"given_name"`
		FamilyName    string `yaml:"family_name"`
		Anonymous     bool   `yaml:"anonymous"`
	} `yaml:"users"`

	Applications []struct {
		ID              string   `yaml:"id"`
		ClientID        string   `yaml:"client_id"`
		Name            string   `yaml:"name"`
		Type            string   `yaml:"type"`
		ClientSecret    string   `yaml:"client_secret"`
		RedirectURIs    []string `yaml:"redirect_uris"`
		AccessTokenTTL  string   `yaml:"access_token_ttl"`
		RefreshTokenTTL string   `yaml:"refresh_token_ttl"`
		LicensingMode   string   `yaml:"licensing_mode"`
		Inactive        bool     `yaml:"inactive"`
	} `yaml:"applications"`

	Memberships []struct {
		User   string `yaml:"user"`
		Tenant string `yaml:"tenant"`
		Status string `yaml:"status"`
		Roles  []struct {
			Slug        string   `yaml:"slug"`
			Name        string   `yaml:"name"`
			Permissions []string `yaml:"permissions"`
		} `yaml:"roles"`
		AppRoles map[string][]string `yaml:"app_roles"`
	} `yaml:"memberships"`

	Licenses []struct {
		Tenant   string   `yaml:"tenant"`
		User     string   `yaml:"user"` // vacío = suscripción del tenant
		ClientID string   `yaml:"client_id"`
		Type     string   `yaml:"type"`
		Name     string   `yaml:"name"`
		Features []string `yaml:"features"`
	} `yaml:"licenses"`
}

// LoadSeedFile lee y aplica un archivo de seed.
func (s *Store) LoadSeedFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("memory: read seed: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(b, &seed); err != nil {
		return fmt.Errorf("memory: parse seed: %w", err)
	}
	return s.ApplySeed(seed)
}

// ApplySeed carga seed en el store.
func (s *Store) ApplySeed(seed Seed) error {
	tenantIDs := map[string]string{}
	for _, t := range seed.Tenants {
		out := s.PutTenant(repository.Tenant{ID: t.ID, Slug: t.Slug, Name: t.Name, CreatedAt: time.Now().UTC()})
		tenantIDs[out.Slug] = out.ID
	}
	for _, u := range seed.Users {
		s.PutUser(repository.User{
			ID: u.ID, Email: u.Email, EmailVerified: u.EmailVerified,
			GivenName: u.GivenName, FamilyName: u.FamilyName, IsAnonymous: u.Anonymous,
		})
	}

	appIDs := map[string]string{}
	for _, a := range seed.Applications {
		app := repository.Application{
			ID:            a.ID,
			ClientID:      a.ClientID,
			Name:          a.Name,
			Type:          strings.ToUpper(a.Type),
			RedirectURIs:  a.RedirectURIs,
			LicensingMode: strings.ToUpper(a.LicensingMode),
			IsActive:      !a.Inactive,
		}
		if app.Type == "" {
			app.Type = repository.AppTypeConfidential
		}
		if app.LicensingMode == "" {
			app.LicensingMode = repository.LicensingFree
		}
		var err error
		if app.AccessTokenTTL, err = optDuration(a.AccessTokenTTL); err != nil {
			return fmt.Errorf("memory: app %s access_token_ttl: %w", a.ClientID, err)
		}
		if app.RefreshTokenTTL, err = optDuration(a.RefreshTokenTTL); err != nil {
			return fmt.Errorf("memory: app %s refresh_token_ttl: %w", a.ClientID, err)
		}
		if a.ClientSecret != "" {
			if app.ClientSecretHash, err = secret.Hash(a.ClientSecret); err != nil {
				return err
			}
		}
		out := s.PutApplication(app)
		appIDs[out.ClientID] = out.ID
	}

	for _, m := range seed.Memberships {
		tid, ok := tenantIDs[strings.ToLower(m.Tenant)]
		if !ok {
			return fmt.Errorf("memory: membership references unknown tenant %q", m.Tenant)
		}
		mem := repository.Membership{UserID: m.User, TenantID: tid, Status: strings.ToUpper(m.Status)}
		for _, r := range m.Roles {
			mem.Roles = append(mem.Roles, repository.TenantRole{Slug: r.Slug, Name: r.Name, Permissions: r.Permissions})
		}
		out := s.PutMembership(mem)
		for clientID, roles := range m.AppRoles {
			appID, ok := appIDs[clientID]
			if !ok {
				return fmt.Errorf("memory: app_roles references unknown client %q", clientID)
			}
			s.SetApplicationRoles(out.ID, appID, roles...)
		}
	}

	for _, l := range seed.Licenses {
		tid, ok := tenantIDs[strings.ToLower(l.Tenant)]
		if !ok {
			return fmt.Errorf("memory: license references unknown tenant %q", l.Tenant)
		}
		appID, ok := appIDs[l.ClientID]
		if !ok {
			return fmt.Errorf("memory: license references unknown client %q", l.ClientID)
		}
		lic := repository.License{TypeSlug: l.Type, TypeName: l.Name, Features: l.Features}
		if l.User == "" {
			s.SetTenantLicense(tid, appID, lic)
		} else {
			s.SetSeatLicense(tid, l.User, appID, lic)
		}
	}
	return nil
}

func optDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
