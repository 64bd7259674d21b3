package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"authorsite/api/internal/content"
	"authorsite/api/internal/localstore"
)

func newContentCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Show, export, import and edit the site content",
	}
	cmd.AddCommand(
		newContentShowCommand(opts),
		newContentExportCommand(opts),
		newContentImportCommand(opts),
		newContentResetCommand(opts),
		newContentSetSectionCommand(opts),
	)
	return cmd
}

func newContentShowCommand(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show [section]",
		Short: "Print the document or one section",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnvironment(cmd.Context(), func(env *environment) error {
				facade, err := env.contentFacade(cmd.Context())
				if err != nil {
					return err
				}
				doc := facade.Content()
				var value any = doc
				if len(args) == 1 {
					name, err := content.ParseSection(args[0])
					if err != nil {
						return err
					}
					if value, err = doc.Section(name); err != nil {
						return err
					}
				}
				return writeValue(cmd.OutOrStdout(), value, format)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format: yaml or json")
	return cmd
}

func newContentExportCommand(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the document to a file, or stdout",
		Long:  `Exports the whole document. The format follows the file extension (.json, .yaml, .yml) unless --format is given.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnvironment(cmd.Context(), func(env *environment) error {
				facade, err := env.contentFacade(cmd.Context())
				if err != nil {
					return err
				}
				if len(args) == 0 {
					return writeValue(cmd.OutOrStdout(), facade.Content(), format)
				}
				if format == "" {
					format = formatFromPath(args[0])
				}
				var buf bytes.Buffer
				if err := writeValue(&buf, facade.Content(), format); err != nil {
					return err
				}
				if err := os.WriteFile(args[0], buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", args[0], err)
				}
				cmd.Printf("Exported content (version %d) to %s\n", facade.Snapshot().Version, args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: yaml or json")
	return cmd
}

func newContentImportCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the document with the contents of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			doc, err := decodeDocument(raw, formatFromPath(args[0]))
			if err != nil {
				return err
			}
			return opts.withEnvironment(cmd.Context(), func(env *environment) error {
				facade, err := env.contentFacade(cmd.Context())
				if err != nil {
					return err
				}
				result, err := facade.SaveContent(cmd.Context(), doc)
				if err != nil {
					return describeSaveError(err)
				}
				env.announce(cmd.Context(), localstore.ContentKey)
				cmd.Printf("Imported %s (%s MB, version %d)\n", args[0], result.SizeInMB(), result.Version)
				return nil
			})
		},
	}
	return cmd
}

func newContentResetCommand(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard the stored document and restore the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset discards every section; pass --yes to confirm")
			}
			return opts.withEnvironment(cmd.Context(), func(env *environment) error {
				facade, err := env.contentFacade(cmd.Context())
				if err != nil {
					return err
				}
				version, err := facade.ResetContent(cmd.Context())
				if err != nil {
					return describeSaveError(err)
				}
				env.announce(cmd.Context(), localstore.ContentKey)
				cmd.Printf("Content reset to defaults (version %d)\n", version)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the reset")
	return cmd
}

func newContentSetSectionCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-section <section> <json|@file>",
		Short: "Merge a JSON object into one section",
		Example: `  sitectl content set-section heroSection '{"title":"Bienvenidos"}'
  sitectl content set-section booksSection @books.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := content.ParseSection(args[0])
			if err != nil {
				return err
			}
			partial := []byte(args[1])
			if path, ok := strings.CutPrefix(args[1], "@"); ok {
				if partial, err = os.ReadFile(path); err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
			}
			return opts.withEnvironment(cmd.Context(), func(env *environment) error {
				facade, err := env.contentFacade(cmd.Context())
				if err != nil {
					return err
				}
				result, err := facade.UpdateSection(cmd.Context(), name, json.RawMessage(partial))
				if err != nil {
					return describeSaveError(err)
				}
				env.announce(cmd.Context(), localstore.ContentKey)
				cmd.Printf("Updated %s (%s MB, version %d)\n", name, result.SizeInMB(), result.Version)
				return nil
			})
		},
	}
	return cmd
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}

func writeValue(w io.Writer, value any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// decodeDocument reads an exported document. YAML is overlaid on the defaults the same
// way content.Decode treats JSON.
func decodeDocument(raw []byte, format string) (content.Document, error) {
	if format == "json" {
		return content.Decode(raw)
	}
	doc := content.Defaults()
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return content.Document{}, fmt.Errorf("decode yaml: %w", err)
	}
	// Round trip through JSON so schema upgrades and list normalization apply.
	encoded, err := json.Marshal(doc)
	if err != nil {
		return content.Document{}, fmt.Errorf("encode content: %w", err)
	}
	return content.Decode(encoded)
}

// describeSaveError expands the problems of a rejected document onto separate lines.
func describeSaveError(err error) error {
	var invalid *content.ValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("content rejected:\n  %s", strings.Join(invalid.Problems, "\n  "))
	}
	return err
}
