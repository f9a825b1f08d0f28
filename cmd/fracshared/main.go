package main

import (
	"os"

	"cosmossdk.io/log"

	"github.com/openalpha/fracshare/cmd/fracshared/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		log.NewLogger(os.Stderr).Error("failure when running fracshared", "err", err)
		os.Exit(1)
	}
}
