package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProviders(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write providers file: %v", err)
	}
	return path
}

func TestLoadProviders(t *testing.T) {
	path := writeProviders(t, `
google:
  client_id: gid
  client_secret: gsecret
  redirect_uri: http://localhost:8042/callback
slack:
  client_id: sid
  client_secret: ssecret
jira:
  domain: acme.atlassian.net
  email: ops@acme.com
  api_token: tok
  project_key: AMP
confluence:
  domain: acme.atlassian.net
  email: ops@acme.com
  api_token: tok
  space_key: OPS
`)

	p, err := LoadProviders(path)
	if err != nil {
		t.Fatalf("LoadProviders failed: %v", err)
	}
	if p.Google == nil || p.Google.ClientID != "gid" {
		t.Errorf("Unexpected google config %+v", p.Google)
	}
	if p.Zoom != nil {
		t.Error("Zoom should be nil when absent from the file")
	}
	if p.Jira == nil || p.Jira.ProjectKey != "AMP" {
		t.Errorf("Unexpected jira config %+v", p.Jira)
	}
	if p.Confluence == nil || p.Confluence.SpaceKey != "OPS" {
		t.Errorf("Unexpected confluence config %+v", p.Confluence)
	}
}

func TestLoadProviders_MissingFile(t *testing.T) {
	p, err := LoadProviders(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Missing file must not be an error, got %v", err)
	}
	if p.Google != nil || p.Slack != nil || p.Jira != nil {
		t.Errorf("Expected empty providers, got %+v", p)
	}
}

func TestLoadProviders_Validation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"oauth missing secret", "google:\n  client_id: gid\n"},
		{"jira missing project key", "jira:\n  domain: a.atlassian.net\n  email: e@x.com\n  api_token: t\n"},
		{"confluence missing space key", "confluence:\n  domain: a.atlassian.net\n  email: e@x.com\n  api_token: t\n"},
		{"atlassian missing token", "jira:\n  domain: a.atlassian.net\n  email: e@x.com\n  project_key: AMP\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadProviders(writeProviders(t, tc.content)); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
