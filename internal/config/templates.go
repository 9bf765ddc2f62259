package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Metawatch Configuration

[monitor]
# How often the terminal state is polled
poll_interval = "1s"
# How long a disappeared pending order waits before being treated as cancelled
confirmation_delay = "3s"
# Minimum time between pinned summary refreshes
summary_min_interval = "2s"
# Delay before reconnecting after a connection failure
reconnect_delay = "5s"
# Broker symbol suffix stripped from instrument names
symbol_suffix = ".s"

[logging]
# Log level: debug, info, warn, error
level = "info"
console = true
file = true
# max_size is in megabytes, max_age in days
max_size = 100
max_backups = 7
max_age = 30

[journal]
# Archive closed positions and cancelled orders to SQLite
enabled = true
# db_path defaults to <config dir>/journal.db
db_path = ""
`

const credentialsTemplate = `# Metawatch Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[broker]
token = ""
account_id = ""
# base_url defaults to the MetaApi client API endpoint
base_url = ""

[telegram]
bot_token = ""
chat_id = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	// Credentials are secrets, keep them readable by the owner only.
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}
	return nil
}
