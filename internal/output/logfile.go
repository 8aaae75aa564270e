package output

import (
	"os"
	"path/filepath"
)

// GetLogFilePath returns the path to the log file.
// If BINNACLE_LOG_FILE is set, uses that path.
// Otherwise, uses ~/.binnacle/logs/binnacle.log
func GetLogFilePath() string {
	if customPath := os.Getenv("BINNACLE_LOG_FILE"); customPath != "" {
		return customPath
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "binnacle.log"
	}

	return filepath.Join(homeDir, ".binnacle", "logs", "binnacle.log")
}
