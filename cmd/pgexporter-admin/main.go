package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgexporter/pgexporter/internal/config"
	"github.com/pgexporter/pgexporter/internal/management"
)

var (
	flagFile     string
	flagUser     string
	flagPassword string
	flagGenerate bool
	flagLength   int
	flagFormat   string
)

func main() {
	root := newRootCommand()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		// A command the tool does not know deserves the full usage, the
		// way a bad operation error does not.
		if strings.HasPrefix(err.Error(), "unknown command") || strings.HasPrefix(err.Error(), "unknown flag") {
			fmt.Fprint(os.Stderr, root.UsageString())
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pgexporter-admin",
		Short:         "Administration tool for pgexporter",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Credential files must never be owned by root.
			if os.Geteuid() == 0 {
				return fmt.Errorf("pgexporter-admin: running as root is not allowed")
			}
			if flagFormat != management.FormatText && flagFormat != management.FormatJSON {
				return fmt.Errorf("pgexporter-admin: invalid output format %q", flagFormat)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flagFile, "file", "f", "", "vault file to operate on")
	pf.StringVarP(&flagUser, "user", "U", "", "username")
	pf.StringVarP(&flagPassword, "password", "P", "", "password")
	pf.BoolVarP(&flagGenerate, "generate", "g", false, "generate a random password")
	pf.IntVarP(&flagLength, "length", "l", config.DefaultGeneratedPasswordLength, "length of generated passwords")
	pf.StringVarP(&flagFormat, "format", "F", management.FormatText, "output format (text|json)")

	root.AddCommand(masterKeyCommand())
	root.AddCommand(userCommand())

	return root
}

// emit renders an envelope; a failed envelope also fails the command.
func emit(res *management.Result) error {
	if err := res.Render(os.Stdout, flagFormat); err != nil {
		return err
	}
	if res.Status != "OK" {
		return res.Err()
	}
	return nil
}
