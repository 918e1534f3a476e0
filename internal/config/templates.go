package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Trading Journal Configuration

[journal]
# Owner ID recorded on every trade, strategy and fund account
owner = "default"
# Timezone used to read and print entry/exit times ("Local" or an IANA name)
timezone = "Local"

[store]
# Persistence backend: "sqlite" or "dynamodb"
backend = "sqlite"
# SQLite database file, relative to this directory unless absolute
sqlite_path = "journal.db"

[store.dynamodb]
region = "us-east-1"
# Set to http://localhost:8000 for DynamoDB Local
endpoint = ""
trades_table = "journal_trades"
strategies_table = "journal_strategies"
fund_accounts_table = "journal_fund_accounts"

[logging]
# Log level: debug, info, warn, error
level = "info"
# Log to stderr
console = true
# Log to a rotating file
file = false
file_path = "logs/journal.log"
# Rotation limits: megabytes, files, days
max_size = 50
max_backups = 5
max_age = 30

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "2006-01-02"
# Time format
time_format = "15:04"
# Currency symbol for P&L and balances
currency = "$"
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
