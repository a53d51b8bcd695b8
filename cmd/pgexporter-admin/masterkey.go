package main

import (
	"github.com/spf13/cobra"

	"github.com/pgexporter/pgexporter/internal/management"
	"github.com/pgexporter/pgexporter/internal/vault"
)

func masterKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "master-key",
		Short: "Create the master key used to encrypt vault files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := management.NewResult("master-key")

			key := flagPassword
			if key == "" && flagGenerate {
				generated, err := vault.GeneratePassword(flagLength)
				if err != nil {
					return emit(res.Fail(err))
				}
				key = generated
			}
			if key == "" {
				entered, err := promptPasswordVerified("Master key")
				if err != nil {
					return emit(res.Fail(err))
				}
				key = entered
			}

			if err := vault.SaveMasterKey(key); err != nil {
				return emit(res.Fail(err))
			}

			path, err := vault.MasterKeyPath()
			if err != nil {
				return emit(res.Fail(err))
			}
			return emit(res.Success(map[string]any{"path": path}))
		},
	}
}
