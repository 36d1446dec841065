package cli

import (
	"fmt"
	"strings"

	"github.com/dfryer1193/inkblog/blog/application"
	"github.com/dfryer1193/inkblog/blog/cache"
	"github.com/dfryer1193/inkblog/blog/persistence"
	"github.com/dfryer1193/inkblog/blog/render"
	"github.com/spf13/cobra"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	var (
		outDir string
		full   bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Render the whole site into static files",
		Long: `Build renders the index, the JSON feed, every post and every tag page into the
output directory and copies uploaded media next to them. Post pages whose source is
unchanged since the previous build into the same directory are kept as they are.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			renderer, err := newRenderer(c.cfg)
			if err != nil {
				return err
			}

			// nothing is served, so invalidations only reach a throwaway memory cache
			posts := application.NewPostService(
				persistence.NewFilePostStore(c.cfg.Paths.Posts),
				application.NewMarkdownRenderer(c.cfg.Site.BaseURL),
				cache.NewPageCache(),
			)

			builder := application.NewBuildService(posts, renderer, c.cfg.Paths.Uploads).
				WithAsset(strings.TrimPrefix(render.StylesheetPath, "/"), render.Stylesheet).
				WithFullRebuild(full)
			result, err := builder.Build(cmd.Context(), outDir)
			if err != nil {
				return fmt.Errorf("build failed: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Built %d posts (%d unchanged), %d tags and %d media files into %s\n",
				result.Posts, result.Skipped, result.Tags, result.Media, outDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "public", "output directory")
	cmd.Flags().BoolVar(&full, "full", false, "render every post page, ignoring the previous build")

	return cmd
}
