package album

import (
	"context"
	"fmt"

	"github.com/kozaktomas/photo-finder/internal/config"
	"github.com/kozaktomas/photo-finder/internal/photoprism"
)

// Open creates the source named by kind from the configuration.
func Open(ctx context.Context, kind string, cfg *config.Config) (Source, error) {
	switch kind {
	case KindPhotoPrism:
		if cfg.PhotoPrism.URL == "" {
			return nil, fmt.Errorf("PHOTOPRISM_URL environment variable is required")
		}
		pp, err := photoprism.NewPhotoPrism(ctx, cfg.PhotoPrism.URL, cfg.PhotoPrism.Username, cfg.PhotoPrism.Password)
		if err != nil {
			return nil, fmt.Errorf("connecting to PhotoPrism: %w", err)
		}
		return NewPhotoPrismSource(pp), nil

	case KindDrive:
		creds := DriveCredentials{
			CredentialsFile: cfg.Drive.CredentialsFile,
			TokenFile:       cfg.Drive.TokenFile,
		}
		client, err := creds.Client(ctx)
		if err != nil {
			return nil, err
		}
		return NewDriveSource(ctx, client)

	case KindDir:
		return &DirSource{Root: cfg.Dir.Root}, nil
	}
	return nil, fmt.Errorf("unknown album source %q (use photoprism, drive or dir)", kind)
}
