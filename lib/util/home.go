package util

import (
	"os"
)

// UserHome returns the current user's home directory.
// Falls back to $HOME, then USERPROFILE, then the working directory, so the
// tool still runs in containers where no home is configured.
func UserHome() string {
	homeDir, err := os.UserHomeDir()
	if err == nil {
		return homeDir
	}
	for _, env := range []string{"HOME", "USERPROFILE"} {
		if home := os.Getenv(env); home != "" {
			log.WithError(err).Warnf("os.UserHomeDir failed, falling back to %s", env)
			return home
		}
	}
	if wd, wdErr := os.Getwd(); wdErr == nil {
		log.WithError(err).Warn("no home directory; falling back to working directory")
		return wd
	}
	return "."
}
