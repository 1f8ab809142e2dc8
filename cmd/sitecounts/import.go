package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Imports markdown posts into the database",
	Long: `import walks a directory for NNN-slug.md files and saves each as a post.
The directory defaults to content.dir from the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	dir := appConfig.Content.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no content directory given and content.dir is not set")
	}

	a, err := newApp(appConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.importer.ImportDir(cmd.Context(), os.DirFS(dir))
	if err != nil {
		return err
	}

	log.Info().Str("dir", dir).Msg("Content imported")
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d, failed %d, skipped %d, removed %d\n",
		result.Imported, result.Failed, result.Skipped, result.Removed)

	if result.Failed > 0 {
		return fmt.Errorf("%d post files failed to import", result.Failed)
	}
	return nil
}
