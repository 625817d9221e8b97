package postgres

import (
	"fmt"

	"github.com/studymate/study-mate-backend/config"
)

// DSN returns DB_DSN when set, otherwise a key/value DSN built from the parts.
func DSN(cfg *config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name,
	)
}
