package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
)

// SetupCmd configures MCP clients to serve the project's fact store.
type SetupCmd struct {
	Dir      string `short:"C" default:"." help:"Project directory the server reads"`
	Claude   bool   `help:"Configure for Claude Code"`
	Cursor   bool   `help:"Configure for Cursor"`
	Global   bool   `help:"Write to the user's home directory instead of the project"`
	FilePath string `help:"Custom directory for the configuration file"`
}

// Run executes the setup command.
func (c *SetupCmd) Run() error {
	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	config := generateServerConfig(dir)

	// Without a client, print the config for manual setup.
	if !c.Claude && !c.Cursor {
		content, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(content))
		return nil
	}

	for _, client := range []struct {
		name    string
		enabled bool
	}{
		{"claude", c.Claude},
		{"cursor", c.Cursor},
	} {
		if !client.enabled {
			continue
		}
		path := c.configPath(dir, client.name)
		if err := writeConfig(path, config); err != nil {
			return err
		}
		color.Green("✓ Created %s MCP config at %s", client.name, path)
	}
	return nil
}

func (c *SetupCmd) configPath(dir, client string) string {
	switch {
	case c.FilePath != "":
		return filepath.Join(c.FilePath, "mcp.json")
	case c.Global:
		return getGlobalConfigPath(client)
	default:
		return getLocalConfigPath(dir, client)
	}
}

// generateServerConfig returns an mcpServers entry that serves dir.
func generateServerConfig(dir string) map[string]any {
	return map[string]any{
		"mcpServers": map[string]any{
			"irfacts": map[string]any{
				"command": "irfacts",
				"args":    []string{"mcp", "-C", dir},
			},
		},
	}
}

// Path helpers

func getLocalConfigPath(basePath, client string) string {
	return filepath.Join(basePath, "."+client, "mcp.json")
}

func getGlobalConfigPath(client string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
	}
	return filepath.Join(homeDir, "."+client, "mcp.json")
}

func writeConfig(configPath string, config map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	content, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	content = append(content, '\n')
	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
