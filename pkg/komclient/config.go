// Client for the Komero appliance's control panel API
package komclient

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/function61/gokit/fileexists"
	"github.com/function61/gokit/jsonfile"
	"github.com/function61/gokit/osutil"
	"github.com/komero-io/komero/pkg/accessmode"
	"github.com/komero-io/komero/pkg/komtypes"
	"github.com/spf13/cobra"
)

const (
	configFilename = "komero-panel-config.json"

	// the appliance exposes exactly one md array to the panel
	defaultArray = "/dev/md0"
)

type ClientConfig struct {
	PanelURL        string `json:"panel_url"` // where the panel is served from; drives mode resolution. empty = last persisted mode wins
	Array           string `json:"array"`
	PrivateBaseURL  string `json:"private_base_url,omitempty"` // override, e.g. "http://192.168.1.10"
	PublicBaseURL   string `json:"public_base_url,omitempty"`
	EmbeddedBrowser bool   `json:"embedded_browser,omitempty"`
}

func (c *ClientConfig) Endpoints() accessmode.Endpoints {
	endpoints := accessmode.DefaultEndpoints()

	if c.PrivateBaseURL != "" {
		endpoints.PrivateBaseURL = c.PrivateBaseURL
	}
	if c.PublicBaseURL != "" {
		endpoints.PublicBaseURL = c.PublicBaseURL
	}

	return endpoints
}

func (c *ClientConfig) Location() (accessmode.Location, error) {
	parsed, err := url.Parse(c.PanelURL)
	if err != nil {
		return accessmode.Location{}, fmt.Errorf("panel_url: %w", err)
	}

	port := 0
	if portStr := parsed.Port(); portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return accessmode.Location{}, fmt.Errorf("panel_url: %w", err)
		}
	}

	return accessmode.Location{
		Host:   parsed.Hostname(),
		Port:   port,
		Secure: parsed.Scheme == "https",
	}, nil
}

func (c *ClientConfig) URLs(mode accessmode.Mode) *komtypes.RestClientUrlBuilder {
	return c.Endpoints().URLs(mode)
}

func WriteConfig(conf *ClientConfig) error {
	confPath, err := ConfigFilePath()
	if err != nil {
		return err
	}

	return jsonfile.Write(confPath, conf)
}

func ReadConfig() (*ClientConfig, error) {
	confPath, err := ConfigFilePath()
	if err != nil {
		return nil, fmt.Errorf("Komero panel config: %v", err)
	}

	conf := &ClientConfig{}
	if err := jsonfile.Read(confPath, conf, true); err != nil {
		return nil, fmt.Errorf("Komero panel config: %v", err)
	}

	if conf.Array == "" {
		conf.Array = defaultArray
	}

	return conf, nil
}

func ConfigFilePath() (string, error) {
	usersHomeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(usersHomeDirectory, configFilename), nil
}

func configInitEntrypoint() *cobra.Command {
	return &cobra.Command{
		Use:   "config-init [panelUrl]",
		Short: "Initialize configuration, use http://komero.local for a LAN-only setup",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			confPath, err := ConfigFilePath()
			osutil.ExitIfError(err)

			exists, err := fileexists.Exists(confPath)
			osutil.ExitIfError(err)

			if exists {
				osutil.ExitIfError(errors.New("config file already exists"))
			}

			osutil.ExitIfError(WriteConfig(&ClientConfig{
				PanelURL: args[0],
				Array:    defaultArray,
			}))
		},
	}
}
