package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"authorsite/api/internal/content"
	"authorsite/api/internal/imagenorm"
)

func newImageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Prepare images for the site",
	}
	cmd.AddCommand(newImageNormalizeCommand())
	return cmd
}

func newImageNormalizeCommand() *cobra.Command {
	var (
		profileName string
		out         string
		dataURL     bool
	)
	cmd := &cobra.Command{
		Use:   "normalize <file>",
		Short: "Resize and compress an image the way the admin upload does",
		Long: `Runs the upload normalizer on a local file. Profiles: upload (800px wide, 2 MB),
portrait (400x600 author photo, 1 MB) and cover (book cover within 400x600, 2 MB).`,
		Args: cobra.ExactArgs(1),
		// No stores are needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := imagenorm.ProfileByName(profileName)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			res, err := imagenorm.Normalize(data, profile)
			if err != nil {
				return err
			}

			if out == "" {
				out = strings.TrimSuffix(args[0], extension(args[0])) + "." + profile.Name + ".jpg"
			}
			if dataURL {
				err = os.WriteFile(out, []byte(res.DataURL), 0o644)
			} else {
				err = os.WriteFile(out, res.JPEG, 0o644)
			}
			if err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}

			cmd.Printf("%s: %dx%d, quality %d, %s MB as data URL (from %s MB)\n",
				out, res.Width, res.Height, res.Quality,
				content.SizeInMB(res.EncodedBytes), content.SizeInMB(res.OriginalBytes))
			if res.Oversized {
				cmd.PrintErrf("warning: still above the %s MB limit of the %s profile at the lowest quality\n",
					content.SizeInMB(profile.Ceiling), profile.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&profileName, "profile", "p", imagenorm.Upload.Name, "normalization profile: upload, portrait or cover")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default <name>.<profile>.jpg)")
	cmd.Flags().BoolVar(&dataURL, "data-url", false, "write the data URL instead of the JPEG bytes")
	return cmd
}

func extension(path string) string {
	if i := strings.LastIndex(path, "."); i > strings.LastIndexAny(path, `/\`) {
		return path[i:]
	}
	return ""
}
