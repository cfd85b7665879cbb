// Command smbclient browses and transfers files on SMB2/3 shares.
package main

import (
	"os"

	"github.com/smbclient-go/smbclient/cmd/smbclient/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
