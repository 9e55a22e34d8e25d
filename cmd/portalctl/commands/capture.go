package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/pmos-desktop/sei-gateway/internal/portal"
	"github.com/pmos-desktop/sei-gateway/internal/shared/id"
)

const defaultFixtureMatch = "**/*.{html,html.gz,html.zst}"

var (
	captureOut   string
	extractIn    string
	extractMatch string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Log in and save the landing page as a compressed fixture",
	RunE: func(cmd *cobra.Command, args []string) error {
		listing, state, err := login(cmd)
		if err != nil {
			return err
		}
		if err := saveState(statePath, state); err != nil {
			return err
		}

		out := captureOut
		if out == "" {
			out = id.NewCaptureID().String() + ".html.gz"
		}
		if err := writeFixture(out, listing.Session.HTML); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Captured %s (%s, %d records) to %s\n",
			listing.Session.FinalURL, listing.Diagnostics.Format, len(listing.Processes), out)
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the listing extractor over captured fixtures",
	Long: `Run the listing extractor over captured fixtures.

--in takes a fixture file, a glob such as 'captures/*.html.gz', or a
directory that is walked for files matching --match.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile := portal.DefaultProfile()
		if profilePath != "" {
			var err error
			if profile, err = portal.LoadProfile(profilePath); err != nil {
				return err
			}
		}

		paths, err := findFixtures(extractIn, extractMatch)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no fixtures match %s", extractIn)
		}

		results := make([]map[string]any, 0, len(paths))
		for _, path := range paths {
			html, err := readFixture(path)
			if err != nil {
				return err
			}
			processes, diag := portal.Extract(html, profile.ListURL, profile)
			results = append(results, map[string]any{
				"arquivo":   path,
				"processos": processes,
				"total":     len(processes),
				"debug":     diag,
			})
		}

		if len(results) == 1 {
			return printJSON(results[0])
		}
		return printJSON(results)
	},
}

// findFixtures expands in to a sorted list of files. Directories are walked
// and filtered by match, relative to the directory.
func findFixtures(in, match string) ([]string, error) {
	info, err := os.Stat(in)
	switch {
	case err == nil && !info.IsDir():
		return []string{in}, nil
	case err == nil:
		return walkFixtures(in, match)
	case os.IsNotExist(err) && strings.ContainsAny(in, "*?[{"):
		matches, err := doublestar.FilepathGlob(in, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", in, err)
		}
		sort.Strings(matches)
		return matches, nil
	default:
		return nil, fmt.Errorf("open fixture: %w", err)
	}
}

func walkFixtures(root, match string) ([]string, error) {
	if !doublestar.ValidatePattern(match) {
		return nil, fmt.Errorf("invalid --match pattern %q", match)
	}

	var (
		mu      sync.Mutex
		matches []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if ok, _ := doublestar.Match(match, filepath.ToSlash(rel)); ok {
			mu.Lock()
			matches = append(matches, path)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(matches)
	return matches, nil
}

// writeFixture compresses with zstd for .zst names and gzip otherwise.
func writeFixture(path, html string) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create fixture: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var w io.WriteCloser
	if strings.HasSuffix(path, ".zst") {
		if w, err = zstd.NewWriter(f); err != nil {
			return err
		}
	} else {
		w = gzip.NewWriter(f)
	}

	if _, err := io.WriteString(w, html); err != nil {
		w.Close()
		return fmt.Errorf("write fixture: %w", err)
	}
	return w.Close()
}

// readFixture accepts .zst, gzip, or plain HTML.
func readFixture(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			return "", err
		}
		defer dec.Close()
		r = dec
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return "", fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read fixture: %w", err)
	}
	return string(data), nil
}

func init() {
	addLoginFlags(captureCmd)
	captureCmd.Flags().StringVarP(&captureOut, "out", "o", "", "Fixture path; .zst selects zstd, anything else gzip.")
	extractCmd.Flags().StringVarP(&extractIn, "in", "i", "", "Fixture file, glob or directory (.zst, .gz or plain HTML).")
	extractCmd.Flags().StringVar(&extractMatch, "match", defaultFixtureMatch, "Pattern for files under a directory --in.")
	_ = extractCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(captureCmd, extractCmd)
}
