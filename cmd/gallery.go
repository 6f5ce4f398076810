package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Enrollment gallery commands",
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "Load the gallery and list enrolled people",
	Long: `Embed every enrollment image and list the people in the gallery.
Images without a usable face are reported as skipped.`,
	RunE: runGalleryList,
}

var galleryCacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Show or prune the PostgreSQL embedding cache",
	Long: `Show the cached enrollment embeddings, optionally deleting old ones.

Examples:
  face-attendance gallery cache
  face-attendance gallery cache --prune-older-than 720h`,
	RunE: runGalleryCache,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryListCmd)
	galleryCmd.AddCommand(galleryCacheCmd)

	galleryListCmd.Flags().Bool("json", false, "Output as JSON")
	galleryCacheCmd.Flags().Duration("prune-older-than", 0, "Delete cache entries older than this")
	galleryCacheCmd.Flags().Bool("json", false, "Output as JSON")
}

// GalleryListOutput is the JSON form of gallery list.
type GalleryListOutput struct {
	Identities []gallery.Identity `json:"identities"`
	Entries    int                `json:"entries"`
	Dim        int                `json:"dim"`
	Report     gallery.LoadReport `json:"report"`
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()

	b, err := openBackends(cfg, false)
	if err != nil {
		return err
	}
	defer b.Close()

	g, report, err := b.loadGallery(ctx)
	if err != nil {
		return fmt.Errorf("failed to load gallery: %w", err)
	}

	if jsonOutput {
		return outputJSON(GalleryListOutput{
			Identities: g.Identities(),
			Entries:    g.Len(),
			Dim:        g.Dim(),
			Report:     report,
		})
	}

	if g.Len() == 0 {
		fmt.Printf("No enrolled faces found in %s\n", b.store.Root())
		printLoadReport(g, report)
		return nil
	}

	w := newTable()
	fmt.Fprintln(w, "NAME\tIMAGES")
	for _, id := range g.Identities() {
		fmt.Fprintf(w, "%s\t%d\n", id.Name, id.Images)
	}
	w.Flush()
	fmt.Println()
	printLoadReport(g, report)
	return nil
}

// CacheOutput is the JSON form of gallery cache.
type CacheOutput struct {
	Count   int                         `json:"count"`
	Pruned  int64                       `json:"pruned"`
	Entries []database.StoredEnrollment `json:"entries"`
}

func runGalleryCache(cmd *cobra.Command, args []string) error {
	olderThan := mustGetDuration(cmd, "prune-older-than")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()

	b := &backends{cfg: cfg}
	defer b.Close()
	if err := initPostgres(cfg, b); err != nil {
		return err
	}
	cache, err := database.GetEnrollmentCache(ctx)
	if err != nil {
		return err
	}

	var out CacheOutput
	if olderThan > 0 {
		out.Pruned, err = cache.DeleteOlderThan(ctx, time.Now().Add(-olderThan))
		if err != nil {
			return fmt.Errorf("failed to prune cache: %w", err)
		}
	}
	if out.Count, err = cache.Count(ctx); err != nil {
		return fmt.Errorf("failed to count cache entries: %w", err)
	}
	if out.Entries, err = cache.List(ctx); err != nil {
		return fmt.Errorf("failed to list cache entries: %w", err)
	}

	if jsonOutput {
		return outputJSON(out)
	}

	if olderThan > 0 {
		fmt.Printf("Pruned %d entries older than %s\n", out.Pruned, olderThan)
	}
	fmt.Printf("Cached embeddings: %d\n", out.Count)
	w := newTable()
	fmt.Fprintln(w, "NAME\tMODEL\tDIM\tCREATED\tPATH")
	for _, e := range out.Entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", e.Name, e.Model, e.Dim, e.CreatedAt.Format(time.DateTime), e.Path)
	}
	w.Flush()
	return nil
}
