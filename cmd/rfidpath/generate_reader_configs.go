package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blacktrace/rfidpath/internal/baseline"
	"github.com/blacktrace/rfidpath/internal/rfchain"
	"github.com/blacktrace/rfidpath/internal/stepauth"
	"github.com/blacktrace/rfidpath/internal/tracker"
)

var (
	readerIDsFlag    string
	readerIDSizeFlag int
	tagIDSizeFlag    int
	pathsFlag        string
)

var generateReaderConfigsCmd = &cobra.Command{
	Use:   "generate-reader-configs",
	Short: "Create a fresh keyfile for the selected protocol",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIntList(readerIDsFlag)
		if err != nil {
			return fmt.Errorf("--readers: %w", err)
		}

		switch protocol {
		case "baseline":
			_, err := baseline.GenerateReaderConfigs(dir, readerIDSizeFlag)
			return err
		case "stepauth":
			_, err := stepauth.GenerateReaderConfigs(dir, ids, readerIDSizeFlag, tagIDSizeFlag)
			return err
		case "tracker":
			paths, err := parsePaths(pathsFlag)
			if err != nil {
				return fmt.Errorf("--paths: %w", err)
			}
			_, err = tracker.GenerateReaderConfigs(dir, ids, paths)
			return err
		case "rfchain":
			_, err := rfchain.GenerateReaderConfigs(dir, resolvedTagDB(), ids)
			return err
		default:
			return fmt.Errorf("unknown protocol %q", protocol)
		}
	},
}

func init() {
	generateReaderConfigsCmd.Flags().StringVar(&readerIDsFlag, "readers", "", "comma-separated reader ids")
	generateReaderConfigsCmd.Flags().IntVar(&readerIDSizeFlag, "reader-id-size", 4, "reader id width in bytes (baseline, stepauth)")
	generateReaderConfigsCmd.Flags().IntVar(&tagIDSizeFlag, "tag-id-size", 4, "tag id width in bytes (stepauth)")
	generateReaderConfigsCmd.Flags().StringVar(&pathsFlag, "paths", "", "tracker sanctioned paths, e.g. dock-to-shelf=1:2:3,returns=1:4")
}

func parseIntList(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// parsePaths parses "label=1:2:3,label2=4:5" into a label->reader-id-path map.
func parsePaths(s string) (map[string][]int, error) {
	out := make(map[string][]int)
	if s == "" {
		return out, nil
	}
	for _, entry := range strings.Split(s, ",") {
		kv := strings.SplitN(entry, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed path entry %q", entry)
		}
		ids, err := parseIntList(strings.ReplaceAll(kv[1], ":", ","))
		if err != nil {
			return nil, err
		}
		out[kv[0]] = ids
	}
	return out, nil
}
