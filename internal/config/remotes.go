package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// RemotesConfig holds all named remotes and tracks which one is active.
type RemotesConfig struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

// Remote is a named workspace profile: where the API is, which workspace
// snapshots belong to and which member acts in it.
type Remote struct {
	URL               string `toml:"url"`
	Token             string `toml:"token,omitempty"`
	Workspace         string `toml:"workspace,omitempty"`
	WorkspaceMemberID string `toml:"workspace_member_id,omitempty"`
	NATSURL           string `toml:"nats_url,omitempty"`
}

// Names returns the remote names in sorted order.
func (c RemotesConfig) Names() []string {
	names := make([]string, 0, len(c.Remotes))
	for name := range c.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveRemote returns the active remote, if one is set and defined.
func (c RemotesConfig) ActiveRemote() (Remote, bool) {
	if c.Active == "" {
		return Remote{}, false
	}
	r, ok := c.Remotes[c.Active]
	return r, ok
}

// Use makes name the active remote.
func (c *RemotesConfig) Use(name string) error {
	if _, ok := c.Remotes[name]; !ok {
		return fmt.Errorf("remote %q not found", name)
	}
	c.Active = name
	return nil
}

// RemotesPath returns the profile file path, creating its directory.
func RemotesPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "vitro")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "remotes.toml"), nil
}

// LoadRemotes reads the profile file at path. A missing file yields an empty
// config.
func LoadRemotes(path string) (RemotesConfig, error) {
	var cfg RemotesConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return RemotesConfig{Remotes: map[string]Remote{}}, nil
		}
		return RemotesConfig{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = map[string]Remote{}
	}
	return cfg, nil
}

// SaveRemotes writes cfg to path with owner-only permissions.
func SaveRemotes(path string, cfg RemotesConfig) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// ApplyRemote fills unset connection settings of c from r. Environment
// variables win over the profile.
func (c *Config) ApplyRemote(r Remote) {
	if os.Getenv("VITRO_API_URL") == "" && r.URL != "" {
		c.APIURL = r.URL
	}
	if c.Token == "" {
		c.Token = r.Token
	}
	if c.NATSURL == "" {
		c.NATSURL = r.NATSURL
	}
	if os.Getenv("VITRO_WORKSPACE") == "" && r.Workspace != "" {
		c.Workspace = r.Workspace
	}
	if c.WorkspaceMemberID == "" {
		c.WorkspaceMemberID = r.WorkspaceMemberID
	}
}
