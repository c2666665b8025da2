package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blacktrace/rfidpath/internal/baseline"
	"github.com/blacktrace/rfidpath/internal/rfchain"
	"github.com/blacktrace/rfidpath/internal/stepauth"
	"github.com/blacktrace/rfidpath/internal/tagio"
	"github.com/blacktrace/rfidpath/internal/tracker"
)

var verifyTagCmd = &cobra.Command{
	Use:   "verify-tag",
	Short: "Check whether a tag's recorded path is authentic",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch protocol {
		case "baseline":
			eng, err := baseline.Load(dir)
			if err != nil {
				return err
			}
			t, err := tagio.Load(dir, tagIDFlag)
			if err != nil {
				return err
			}
			ok, _, err := eng.VerifyTag(t)
			return report(ok, err)
		case "stepauth":
			eng, err := stepauth.Load(dir)
			if err != nil {
				return err
			}
			t, err := tagio.Load(dir, tagIDFlag)
			if err != nil {
				return err
			}
			ok, err := eng.VerifyTag(readerFlag, t)
			return report(ok, err)
		case "tracker":
			eng, err := tracker.Load(dir)
			if err != nil {
				return err
			}
			t, err := tagio.Load(dir, tagIDFlag)
			if err != nil {
				return err
			}
			ok, label, err := eng.VerifyTag(t)
			if err != nil {
				return err
			}
			if ok {
				fmt.Printf("VALID (path %s)\n", label)
				return nil
			}
			fmt.Println("INVALID")
			return nil
		case "rfchain":
			eng, err := rfchain.Load(dir, resolvedTagDB())
			if err != nil {
				return err
			}
			defer eng.Close()
			t, err := tagio.Load(dir, tagIDFlag)
			if err != nil {
				return err
			}
			ok, err := eng.VerifyTag(t)
			return report(ok, err)
		default:
			return fmt.Errorf("unknown protocol %q", protocol)
		}
	},
}

func report(ok bool, err error) error {
	if err != nil {
		return err
	}
	if ok {
		fmt.Println("VALID")
	} else {
		fmt.Println("INVALID")
	}
	return nil
}

func init() {
	verifyTagCmd.Flags().Uint32Var(&tagIDFlag, "tag-id", 0, "tag id")
	verifyTagCmd.Flags().IntVar(&readerFlag, "reader", 0, "reader id to verify against (stepauth only)")
}
