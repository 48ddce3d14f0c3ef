// Command authorize runs the Dropbox offline-access flow once and stores the
// resulting refresh token in the service configuration file.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Obtain a Dropbox refresh token for the review service",
	Long: `Authorize prints a Dropbox authorization URL. Open it, allow access,
paste the code shown by Dropbox back into the terminal and the refresh token
is written to dropbox.refresh_token in the config file.

The app key and secret are read from the config file unless given as flags.`,
	SilenceUsage: true,
	RunE:         runAuthorize,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
