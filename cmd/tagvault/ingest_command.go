package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cognicore/tagvault/pkg/tagvault/capture"
	"github.com/cognicore/tagvault/pkg/tagvault/internalerr"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var file string
	var fromCapture bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "ingest [tag...]",
		Short: "Store and categorize tags",
		Long: "Store and categorize tags given as arguments, a JSON array file, or " +
			"captured recommend-tags responses (--capture, one JSON object per line). " +
			"Use --file - to read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromCapture && file == "" {
				return errors.New("--capture requires --file")
			}
			names := append([]string{}, args...)
			if file != "" {
				fromFile, err := readTagFile(cmd.InOrStdin(), file, fromCapture, ctx)
				if err != nil {
					return err
				}
				names = append(names, fromFile...)
			}
			if len(names) == 0 {
				return fmt.Errorf("no tags given; pass tags as arguments or use --file")
			}

			svc, st, err := ctx.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := svc.Ingest(cmd.Context(), names)
			if err != nil && !errors.Is(err, internalerr.ErrStorage) {
				return err
			}
			if jsonOut {
				if werr := writeJSON(cmd.OutOrStdout(), res); werr != nil {
					return werr
				}
			} else {
				note := ""
				if res.Fallback {
					note = " (classifier unavailable, fallback category used)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "received %d, new %d, added %d%s\n",
					res.Received, res.New, res.Added, note)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read tags from a file (- for stdin)")
	cmd.Flags().BoolVar(&fromCapture, "capture", false, "Treat the file as captured recommend-tags responses")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")
	return cmd
}

func readTagFile(stdin io.Reader, path string, fromCapture bool, ctx *commandContext) ([]string, error) {
	if fromCapture {
		if path == "-" {
			return capture.LoadFromReader(stdin, "stdin", ctx.logger())
		}
		return capture.LoadFromJSONL(path, ctx.logger())
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("%s: expected a JSON array of strings: %w", path, err)
	}
	return names, nil
}
