// Command rfidpath is the thin operator-facing front end over the four
// protocol engines: it loads or creates a keyfile under --dir and
// dispatches generate-reader-configs, generate-tag-secret, update-tag,
// and verify-tag to whichever engine --protocol names.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	protocol string
	dir      string
	tagDBDir string
)

var rootCmd = &cobra.Command{
	Use:   "rfidpath",
	Short: "RFID path-authentication protocol suite",
	Long: `rfidpath issues, updates, and verifies path-authenticating RFID tags
under one of four protocol engines: baseline, stepauth, tracker, rfchain.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&protocol, "protocol", "", "protocol engine: baseline, stepauth, tracker, rfchain")
	rootCmd.PersistentFlags().StringVar(&dir, "dir", ".", "directory holding the keyfile and tag files")
	rootCmd.PersistentFlags().StringVar(&tagDBDir, "tagdb", "", "path to the RFChain TagDB store (rfchain only, defaults to <dir>/tagdb)")
	rootCmd.MarkPersistentFlagRequired("protocol")

	rootCmd.AddCommand(generateReaderConfigsCmd)
	rootCmd.AddCommand(generateTagSecretCmd)
	rootCmd.AddCommand(updateTagCmd)
	rootCmd.AddCommand(verifyTagCmd)
}

func main() {
	Execute()
}

func resolvedTagDB() string {
	if tagDBDir != "" {
		return tagDBDir
	}
	return dir + "/tagdb"
}
