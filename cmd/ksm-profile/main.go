package main

import (
	"os"

	"github.com/keeper-security/ksm-profile/cmd/ksm-profile/commands"
)

// Version is the current version of ksm-profile
// This must match the git tag when creating releases
const Version = "v0.1.0"

func main() {
	if err := commands.Execute(Version); err != nil {
		os.Exit(1)
	}
}
