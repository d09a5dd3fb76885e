package cli

import (
	"fmt"
	"io"
	"os"

	"letterbox/internal/core"
	"letterbox/internal/features/newsletters/render"

	"github.com/spf13/cobra"
)

func newRenderCmd() *cobra.Command {
	opts := render.DefaultOptions()
	var noDarkMode, keepTracking, sanitizeOnly bool

	cmd := &cobra.Command{
		Use:   "render [file.html]",
		Short: "Sanitize and transform newsletter HTML from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			raw, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			if sanitizeOnly {
				_, err = io.WriteString(cmd.OutOrStdout(), render.Sanitize(string(raw)))
				return err
			}

			opts.EnableDarkMode = !noDarkMode
			opts.RemoveTrackingPixels = !keepTracking

			transformer := render.NewTransformer(core.NopLogger())
			_, err = io.WriteString(cmd.OutOrStdout(), transformer.Pipeline(string(raw), opts, nil))
			return err
		},
	}

	cmd.Flags().StringVar(&opts.MaxWidth, "max-width", opts.MaxWidth, "CSS max-width of the content container")
	cmd.Flags().BoolVar(&opts.PreserveOriginalStyles, "preserve-styles", opts.PreserveOriginalStyles, "keep fixed widths and heights")
	cmd.Flags().BoolVar(&opts.FixTableLayouts, "fix-tables", opts.FixTableLayouts, "collapse layout tables")
	cmd.Flags().BoolVar(&opts.MakeImagesResponsive, "responsive-images", opts.MakeImagesResponsive, "make images fluid")
	cmd.Flags().BoolVar(&noDarkMode, "no-dark-mode", false, "leave author colors alone")
	cmd.Flags().BoolVar(&keepTracking, "keep-tracking", false, "keep tracking pixels")
	cmd.Flags().BoolVar(&sanitizeOnly, "sanitize-only", false, "only sanitize, skip the responsive transform")
	return cmd
}
