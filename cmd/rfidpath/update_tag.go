package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blacktrace/rfidpath/internal/baseline"
	"github.com/blacktrace/rfidpath/internal/rfchain"
	"github.com/blacktrace/rfidpath/internal/stepauth"
	"github.com/blacktrace/rfidpath/internal/tracker"
)

var readerFlag int

var updateTagCmd = &cobra.Command{
	Use:   "update-tag",
	Short: "Have a reader process a tag, advancing its protocol state",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch protocol {
		case "baseline":
			eng, err := baseline.Load(dir)
			if err != nil {
				return err
			}
			_, err = eng.UpdateTag(uint32(readerFlag), tagIDFlag)
			return err
		case "stepauth":
			eng, err := stepauth.Load(dir)
			if err != nil {
				return err
			}
			_, err = eng.UpdateTag(readerFlag, tagIDFlag)
			return err
		case "tracker":
			eng, err := tracker.Load(dir)
			if err != nil {
				return err
			}
			_, err = eng.UpdateTag(readerFlag, tagIDFlag)
			return err
		case "rfchain":
			eng, err := rfchain.Load(dir, resolvedTagDB())
			if err != nil {
				return err
			}
			defer eng.Close()
			_, err = eng.UpdateTag(readerFlag, tagIDFlag)
			return err
		default:
			return fmt.Errorf("unknown protocol %q", protocol)
		}
	},
}

func init() {
	updateTagCmd.Flags().Uint32Var(&tagIDFlag, "tag-id", 0, "tag id")
	updateTagCmd.Flags().IntVar(&readerFlag, "reader", 0, "reader id performing the update")
}
