package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Gallery management commands",
}

var galleryImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Compute embeddings for a directory of face images",
	Long: `Compute a face embedding for every .jpg/.jpeg/.png image in a directory.
The identity is the file name without extension. Images without a detectable
face are skipped.

The result is written to a manifest file (--output) and/or upserted into the
PostgreSQL identities table (--postgres), so the server can start without
re-extracting every image.

Examples:
  face-attendance gallery import --dir known_faces --output gallery.yaml
  face-attendance gallery import --dir known_faces --postgres`,
	RunE: runGalleryImport,
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the identities of the configured gallery",
	RunE:  runGalleryList,
}

var galleryRemoveCmd = &cobra.Command{
	Use:   "remove <identity>",
	Short: "Remove an identity from the PostgreSQL gallery",
	Args:  cobra.ExactArgs(1),
	RunE:  runGalleryRemove,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryImportCmd, galleryListCmd, galleryRemoveCmd)

	galleryImportCmd.Flags().String("dir", constants.DefaultGalleryDir, "Directory with face images")
	galleryImportCmd.Flags().String("output", "", "Write a manifest (.yaml or .json)")
	galleryImportCmd.Flags().Bool("postgres", false, "Upsert identities into PostgreSQL")
	galleryImportCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of parallel extractions")
	galleryImportCmd.Flags().Bool("json", false, "Output as JSON")

	galleryListCmd.Flags().Bool("json", false, "Output as JSON")
}

// GalleryImportResult is the JSON output of gallery import.
type GalleryImportResult struct {
	Images     int      `json:"images"`
	Identities []string `json:"identities"`
	Manifest   string   `json:"manifest,omitempty"`
	Postgres   bool     `json:"postgres"`
	DurationMs int64    `json:"duration_ms"`
}

func runGalleryImport(cmd *cobra.Command, args []string) error {
	dir := mustGetString(cmd, "dir")
	output := mustGetString(cmd, "output")
	toPostgres := mustGetBool(cmd, "postgres")
	concurrency := mustGetInt(cmd, "concurrency")
	jsonOutput := mustGetBool(cmd, "json")

	if output == "" && !toPostgres {
		return errors.New("nothing to do: set --output and/or --postgres")
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	startTime := time.Now()

	files, err := gallery.ImageFiles(dir)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Extracting faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	loader := &gallery.DirectoryLoader{
		Dir:         dir,
		Extractor:   extractor.NewClient(cfg.Embedding.URL, extractor.Options{MaxImageSize: cfg.Embedding.MaxImageSize}),
		Concurrency: concurrency,
		Logger:      logger,
		OnImage: func() {
			if bar != nil {
				bar.Add(1)
			}
		},
	}
	entries, err := loader.LoadEntries(ctx)
	if err != nil {
		return err
	}
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}

	// Reject dimension mismatches before anything is written.
	if _, err := gallery.New(entries, gallery.Options{Dim: cfg.Match.EmbeddingDim}); err != nil {
		return err
	}

	if output != "" {
		if err := gallery.WriteManifest(output, entries); err != nil {
			return err
		}
	}

	if toPostgres {
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		defer pool.Close()

		if err := upsertEntries(ctx, postgres.NewIdentityRepository(pool), entries); err != nil {
			return err
		}
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Identity
	}
	result := GalleryImportResult{
		Images:     len(files),
		Identities: ids,
		Manifest:   output,
		Postgres:   toPostgres,
		DurationMs: time.Since(startTime).Milliseconds(),
	}
	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Printf("Imported %d identities from %d images in %s\n", len(ids), len(files), time.Since(startTime).Round(time.Millisecond))
	if skipped := len(files) - len(ids); skipped > 0 {
		fmt.Printf("Skipped %d images without a detectable face\n", skipped)
	}
	if output != "" {
		fmt.Printf("Manifest written to %s\n", output)
	}
	return nil
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(context.Background(), cfg, logger, appOptions{skipLedger: true})
	if err != nil {
		return err
	}
	defer a.Close()

	g := a.store.Snapshot()
	ids := g.Identities()
	if jsonOutput {
		return outputJSON(map[string]any{
			"source":     cfg.Gallery.Source,
			"dim":        g.Dim(),
			"metric":     g.Metric(),
			"identities": ids,
		})
	}

	fmt.Printf("Gallery (%s, %d identities, dim %d, %s):\n", cfg.Gallery.Source, len(ids), g.Dim(), g.Metric())
	for i, id := range ids {
		fmt.Printf("  %3d. %s\n", i+1, id)
	}
	return nil
}

func runGalleryRemove(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	removed, err := removeIdentity(ctx, postgres.NewIdentityRepository(pool), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", removed)
	return nil
}

// upsertEntries stores entries in order; a later duplicate replaces the earlier embedding.
func upsertEntries(ctx context.Context, repo database.IdentityWriter, entries []gallery.Entry) error {
	for _, e := range entries {
		if err := repo.Upsert(ctx, e.Identity, e.Embedding); err != nil {
			return err
		}
	}
	return nil
}

// removeIdentity deletes the stored identity matching name (ignoring case and diacritics)
// and returns its stored spelling.
func removeIdentity(ctx context.Context, repo database.IdentityWriter, name string) (string, error) {
	stored, err := repo.List(ctx)
	if err != nil {
		return "", err
	}
	for _, s := range stored {
		if identity.Equal(s.Identity, name) {
			if err := repo.Delete(ctx, s.Identity); err != nil {
				return "", err
			}
			return s.Identity, nil
		}
	}
	return "", fmt.Errorf("identity %q not found", name)
}
