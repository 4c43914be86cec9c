package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/photo-finder/internal/album"
	"github.com/spf13/cobra"
)

var driveLoginCmd = &cobra.Command{
	Use:   "drive-login",
	Short: "Authorize read-only access to Google Drive",
	Long: `Opens the Google consent flow for the OAuth client in DRIVE_CREDENTIALS_FILE
and stores the resulting token in DRIVE_TOKEN_FILE. The token is refreshed
automatically afterwards.`,
	RunE: runDriveLogin,
}

func init() {
	rootCmd.AddCommand(driveLoginCmd)
}

func runDriveLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	creds := album.DriveCredentials{
		CredentialsFile: cfg.Drive.CredentialsFile,
		TokenFile:       cfg.Drive.TokenFile,
	}
	url, err := creds.AuthCodeURL("photo-finder")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Open this URL in your browser and grant access:\n\n  %s\n\n", url)
	fmt.Fprint(out, "Paste the authorization code: ")

	code, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	code = strings.TrimSpace(code)
	if code == "" {
		if err != nil {
			return fmt.Errorf("reading authorization code: %w", err)
		}
		return errors.New("no authorization code given")
	}

	if err := creds.Exchange(cmd.Context(), code); err != nil {
		return err
	}
	fmt.Fprintf(out, "Token saved to %s\n", creds.TokenFile)
	return nil
}
