package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/UnknownOlympus/geotweet/internal/models"
	"github.com/UnknownOlympus/geotweet/internal/service"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// maxStatusSize bounds a single JSON line.
const maxStatusSize = 1 << 20

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [FILE]",
		Short: "Resolves statuses read as JSON lines from FILE or stdin",
		Long: `
Reads one status per line, in the Twitter JSON format, and prints one resolved status
per line. Reads stdin when FILE is missing or "-".
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, name := io.Reader(cmd.InOrStdin()), "stdin"
			if len(args) == 1 && args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open statuses: %w", err)
				}
				defer file.Close()
				in, name = file, args[0]
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				var bar *progressbar.ProgressBar
				if isatty.IsTerminal(os.Stderr.Fd()) {
					bar = progressbar.NewOptions(-1,
						progressbar.OptionSetDescription("Resolving "+name),
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionShowCount(),
						progressbar.OptionClearOnFinish(),
					)
				}

				source := newLineSource(in, name, a.log)
				sink := &jsonSink{enc: json.NewEncoder(cmd.OutOrStdout()), bar: bar}
				stream := service.NewStream(source, a.geocoder, sink, a.log, a.metrics, nil)
				if err := stream.Run(ctx); err != nil {
					return err
				}
				if bar != nil {
					_ = bar.Finish()
				}

				return source.Err()
			})
		},
	}
}

// lineSource reads statuses from JSON lines. Lines that do not decode are skipped.
// It implements service.Source.
type lineSource struct {
	scanner *bufio.Scanner
	name    string
	line    int64
	log     *slog.Logger
}

func newLineSource(r io.Reader, name string, log *slog.Logger) *lineSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStatusSize)

	return &lineSource{scanner: scanner, name: name, log: log}
}

// Fetch returns the status on the next non-empty line, or io.EOF at the end of input.
func (s *lineSource) Fetch(ctx context.Context) (models.FeedMessage, error) {
	for s.scanner.Scan() {
		s.line++
		text := bytes.TrimSpace(s.scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		var status models.Status
		if err := json.Unmarshal(text, &status); err != nil {
			s.log.WarnContext(ctx, "Skipping undecodable line", "input", s.name, "line", s.line, "error", err)
			continue
		}

		return models.FeedMessage{Status: status, Topic: s.name, Offset: s.line}, nil
	}

	return models.FeedMessage{}, io.EOF
}

// Err returns the read error that ended the input, if any.
func (s *lineSource) Err() error {
	if err := s.scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", s.name, err)
	}
	return nil
}

// jsonSink prints resolved statuses as JSON lines.
// It implements service.Sink.
type jsonSink struct {
	enc *json.Encoder
	bar *progressbar.ProgressBar
}

func (s *jsonSink) Publish(_ context.Context, tagged models.GeoTagged) error {
	if err := s.enc.Encode(tagged); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if s.bar != nil {
		_ = s.bar.Add(1)
	}
	return nil
}
