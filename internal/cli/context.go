// Package cli provides the command-line interface for harvest.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/law-makers/harvest/internal/app"
)

// The Application is created once per process in PersistentPreRunE and
// shared by whichever command runs
var globalApp *app.Application

// SetApp stores the Application for the running command
func SetApp(_ *cobra.Command, a *app.Application) {
	globalApp = a
}

// GetAppFromCmd returns the Application initialized for cmd, or nil
// before initialization
func GetAppFromCmd(_ *cobra.Command) *app.Application {
	return globalApp
}
