package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blacktrace/rfidpath/internal/baseline"
	"github.com/blacktrace/rfidpath/internal/rfchain"
	"github.com/blacktrace/rfidpath/internal/stepauth"
	"github.com/blacktrace/rfidpath/internal/tracker"
)

var (
	tagIDFlag       uint32
	pathFlag        string
	issuerFlag      int
)

var generateTagSecretCmd = &cobra.Command{
	Use:   "generate-tag-secret",
	Short: "Mint a fresh tag under the selected protocol",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch protocol {
		case "baseline":
			eng, err := baseline.Load(dir)
			if err != nil {
				return err
			}
			_, err = eng.GenerateTagSecret(tagIDFlag)
			return err
		case "stepauth":
			eng, err := stepauth.Load(dir)
			if err != nil {
				return err
			}
			path, err := parseIntList(strings.ReplaceAll(pathFlag, ":", ","))
			if err != nil {
				return fmt.Errorf("--path: %w", err)
			}
			_, err = eng.GenerateTagSecret(tagIDFlag, path)
			return err
		case "tracker":
			eng, err := tracker.Load(dir)
			if err != nil {
				return err
			}
			_, err = eng.GenerateTagSecret(tagIDFlag)
			return err
		case "rfchain":
			eng, err := rfchain.Load(dir, resolvedTagDB())
			if err != nil {
				return err
			}
			defer eng.Close()
			_, err = eng.GenerateTagSecret(tagIDFlag, issuerFlag)
			return err
		default:
			return fmt.Errorf("unknown protocol %q", protocol)
		}
	},
}

func init() {
	generateTagSecretCmd.Flags().Uint32Var(&tagIDFlag, "tag-id", 0, "tag id")
	generateTagSecretCmd.Flags().StringVar(&pathFlag, "path", "", "stepauth: colon or comma separated reader path, first to last")
	generateTagSecretCmd.Flags().IntVar(&issuerFlag, "issuer", 0, "rfchain: reader id signing the genesis envelope")
}
