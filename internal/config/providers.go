package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// OAuthApp holds the application credentials for an OAuth provider.
type OAuthApp struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
}

// AtlassianSite holds static credentials for a Jira or Confluence site.
// These providers use API tokens rather than per-user OAuth.
type AtlassianSite struct {
	Domain   string `yaml:"domain"` // e.g. "acme.atlassian.net"
	Email    string `yaml:"email"`
	APIToken string `yaml:"api_token"`
	// ProjectKey (Jira) or SpaceKey (Confluence) scopes created items
	ProjectKey string `yaml:"project_key,omitempty"`
	SpaceKey   string `yaml:"space_key,omitempty"`
}

// Providers is the parsed providers.yaml. A nil section means that provider
// is not configured; callers must treat it as absent rather than defaulting.
type Providers struct {
	Google     *OAuthApp      `yaml:"google,omitempty"`
	Slack      *OAuthApp      `yaml:"slack,omitempty"`
	Zoom       *OAuthApp      `yaml:"zoom,omitempty"`
	Jira       *AtlassianSite `yaml:"jira,omitempty"`
	Confluence *AtlassianSite `yaml:"confluence,omitempty"`
}

// LoadProviders reads and validates the provider credentials file. A missing
// file yields an empty Providers (nothing configured), not an error.
func LoadProviders(path string) (*Providers, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Providers{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	var p Providers
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}

	if err := p.validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

func (p *Providers) validate() error {
	for name, app := range map[string]*OAuthApp{"google": p.Google, "slack": p.Slack, "zoom": p.Zoom} {
		if app == nil {
			continue
		}
		if app.ClientID == "" || app.ClientSecret == "" {
			return fmt.Errorf("provider %s: client_id and client_secret are required", name)
		}
	}
	for name, site := range map[string]*AtlassianSite{"jira": p.Jira, "confluence": p.Confluence} {
		if site == nil {
			continue
		}
		if site.Domain == "" || site.Email == "" || site.APIToken == "" {
			return fmt.Errorf("provider %s: domain, email and api_token are required", name)
		}
	}
	if p.Jira != nil && p.Jira.ProjectKey == "" {
		return fmt.Errorf("provider jira: project_key is required")
	}
	if p.Confluence != nil && p.Confluence.SpaceKey == "" {
		return fmt.Errorf("provider confluence: space_key is required")
	}
	return nil
}
