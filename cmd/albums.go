package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/kozaktomas/photo-finder/internal/photoprism"
	"github.com/spf13/cobra"
)

var albumsCmd = &cobra.Command{
	Use:   "albums",
	Short: "List PhotoPrism albums that can be scanned",
	Long: `Retrieves the albums of your PhotoPrism instance. The UID column is what
"photo-finder find --source photoprism --album" expects.`,
	RunE: runAlbums,
}

func init() {
	rootCmd.AddCommand(albumsCmd)

	albumsCmd.Flags().Int("count", 100, "Number of albums to retrieve")
	albumsCmd.Flags().Int("offset", 0, "Offset for pagination")
	albumsCmd.Flags().String("query", "", "Search query to filter albums")
}

func runAlbums(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.PhotoPrism.URL == "" {
		return fmt.Errorf("PHOTOPRISM_URL environment variable is required")
	}

	ctx := cmd.Context()
	pp, err := photoprism.NewPhotoPrism(ctx, cfg.PhotoPrism.URL, cfg.PhotoPrism.Username, cfg.PhotoPrism.Password)
	if err != nil {
		return fmt.Errorf("failed to connect to PhotoPrism: %w", err)
	}
	defer pp.Logout(ctx)

	flags := cmd.Flags()
	count := mustFlag(flags.GetInt, "count")
	offset := mustFlag(flags.GetInt, "offset")
	albums, err := pp.GetAlbums(ctx, count, offset, mustFlag(flags.GetString, "query"))
	if err != nil {
		return fmt.Errorf("failed to get albums: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(albums) == 0 {
		fmt.Fprintln(out, "No albums found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UID\tTITLE\tPHOTOS\tTYPE")
	fmt.Fprintln(w, "---\t-----\t------\t----")
	for i := range albums {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", albums[i].UID, albums[i].Title, albums[i].PhotoCount, albums[i].Type)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal: %d albums\n", len(albums))
	return nil
}
