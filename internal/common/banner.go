package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the effective settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.Print("TenderIntel", Version)

	logger.Info().
		Str("version", Version).
		Str("environment", config.Environment).
		Str("storage", config.Storage.Type).
		Str("portal", config.Portal.BaseURL).
		Bool("search_api", config.Search.APIKey != "").
		Msg("TenderIntel starting")
}
