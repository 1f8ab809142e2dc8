package main

import (
	"fmt"
	"strconv"

	"github.com/dfryer1193/sitecounts/blog/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	postTypePrivate  bool
	postTypeSingular string
)

var publishCmd = &cobra.Command{
	Use:   "publish <post-id>",
	Short: "Publishes a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPostStatus(cmd, args[0], true)
	},
}

var unpublishCmd = &cobra.Command{
	Use:   "unpublish <post-id>",
	Short: "Moves a published post back to draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPostStatus(cmd, args[0], false)
	},
}

var postTypeCmd = &cobra.Command{
	Use:   "post-type <slug> <label>",
	Short: "Registers or updates a post type",
	Long: `post-type registers a post type so imported files can use it. Public
types are counted by the site counts block.`,
	Args: cobra.ExactArgs(2),
	RunE: runPostType,
}

func init() {
	postTypeCmd.Flags().BoolVar(&postTypePrivate, "private", false, "exclude the type from public listings")
	postTypeCmd.Flags().StringVar(&postTypeSingular, "singular", "", "singular label (defaults to the label)")
	rootCmd.AddCommand(publishCmd, unpublishCmd, postTypeCmd)
}

func setPostStatus(cmd *cobra.Command, rawID string, publish bool) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid post id %q", rawID)
	}

	a, err := newApp(appConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	if publish {
		err = a.posts.Publish(cmd.Context(), id)
	} else {
		err = a.posts.Unpublish(cmd.Context(), id)
	}
	if err != nil {
		return err
	}

	log.Info().Int64("postID", id).Bool("published", publish).Msg("Post status updated")
	return nil
}

func runPostType(cmd *cobra.Command, args []string) error {
	a, err := newApp(appConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	singular := postTypeSingular
	if singular == "" {
		singular = args[1]
	}

	pt := &domain.PostType{
		Slug:          args[0],
		Label:         args[1],
		SingularLabel: singular,
		Public:        !postTypePrivate,
	}
	if err := a.types.SavePostType(cmd.Context(), pt); err != nil {
		return err
	}

	log.Info().Str("slug", pt.Slug).Bool("public", pt.Public).Msg("Post type saved")
	return nil
}
