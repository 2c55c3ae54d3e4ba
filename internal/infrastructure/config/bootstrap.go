package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AppName is the canonical application name
const AppName = "srcchat"

// HomeDir returns the configuration home: ~/.srcchat
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// Bootstrap ensures ~/.srcchat exists with a starter config and quick
// response catalog. Existing files are never overwritten.
func Bootstrap(logger *zap.Logger) error {
	root := HomeDir()

	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("create dir %s: %w", root, err)
	}

	defaults := map[string]string{
		filepath.Join(root, "config.yaml"):          defaultConfig,
		filepath.Join(root, "quick_responses.yaml"): defaultQuickResponses,
	}

	created := 0
	for path, content := range defaults {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			logger.Warn("Failed to write default file", zap.String("path", path), zap.Error(err))
			continue
		}
		created++
	}

	if created > 0 {
		logger.Info("srcchat bootstrap complete",
			zap.String("home", root),
			zap.Int("files_created", created),
		)
	} else {
		logger.Debug("srcchat home directory OK", zap.String("home", root))
	}

	return nil
}

const defaultConfig = `# SRC live chat configuration
# Every key can be overridden with SRCCHAT_<SECTION>_<KEY>, e.g. SRCCHAT_SERVER_PORT.

server:
  host: 0.0.0.0
  port: 8080
  mode: release                # debug | release
  cors_origins:
    - http://localhost:3000

database:
  type: sqlite                 # sqlite | postgres | mysql
  dsn: srcchat.db
  create_if_missing: true      # mysql: create the schema on first start

log:
  level: info                  # debug | info | warn | error
  format: console              # console | json

auth:
  jwt_secret: ""               # required; shared with the SRC website
  cookie_name: src_session
  token_ttl: 24h

presence:
  stale_after: 5m
  exclude_stale_from_assignment: false

uploads:
  dir: uploads/chat
  max_bytes: 5242880

quick_responses:
  file: ~/.srcchat/quick_responses.yaml
  watch: true

redis:
  enabled: false
  addr: localhost:6379
  rate_limit:
    enabled: true
    limit: 20
    window: 10s

kafka:
  enabled: false
  brokers: []
  topic: srcchat.events

telegram:
  enabled: false
  bot_token: ""
  chat_id: 0
`

const defaultQuickResponses = `# Canned replies offered to agents. Bodies are markdown.
- category: general
  title: Greeting
  body: Hello! Thanks for contacting the **SRC helpdesk**. How can I help you today?
- category: general
  title: Closing
  body: Is there anything else I can help you with?
- category: finance
  title: Bursary status
  body: |
    Bursary applications are reviewed by the finance committee.
    You can track yours under *My Applications* on the SRC portal.
- category: events
  title: Event registration
  body: Registration for SRC events opens two weeks before the event date.
`
