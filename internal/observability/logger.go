package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/roomlink/internal/logging"
)

// InitLogger applies the runtime logging profile and tags every line with
// app. Logs go to stderr; stdout is left to command output.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	log.Logger = log.With().Str("app", app).Logger()
	return log.Logger
}
