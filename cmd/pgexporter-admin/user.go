package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgexporter/pgexporter/internal/management"
	"github.com/pgexporter/pgexporter/internal/vault"
)

func userCommand() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage credentials in a vault file",
	}

	user.AddCommand(
		&cobra.Command{
			Use:   "add",
			Short: "Add a credential to the vault",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return userMutation("user add", vault.AddUser)
			},
		},
		&cobra.Command{
			Use:   "edit",
			Short: "Change the password of an existing credential",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return userMutation("user edit", vault.UpdateUser)
			},
		},
		&cobra.Command{
			Use:   "del",
			Short: "Remove a credential from the vault",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				res := management.NewResult("user del")
				if flagFile == "" {
					return emit(res.Fail(fmt.Errorf("missing vault file, use -f")))
				}

				username, err := requireUser()
				if err != nil {
					return emit(res.Fail(err))
				}
				if err := vault.RemoveUser(flagFile, username); err != nil {
					return emit(res.Fail(err))
				}
				return emit(res.Success(map[string]any{"file": flagFile, "user": username}))
			},
		},
		&cobra.Command{
			Use:   "ls",
			Short: "List usernames stored in the vault",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				res := management.NewResult("user ls")
				if flagFile == "" {
					return emit(res.Fail(fmt.Errorf("missing vault file, use -f")))
				}

				names, err := vault.ListUsers(flagFile)
				if err != nil {
					return emit(res.Fail(err))
				}
				return emit(res.Success(map[string]any{"file": flagFile, "users": names}))
			},
		},
	)

	return user
}

// userMutation implements add and edit, which differ only in the vault
// operation applied once the username and password are settled.
func userMutation(command string, op func(path, master, username, password string) error) error {
	res := management.NewResult(command)
	if flagFile == "" {
		return emit(res.Fail(fmt.Errorf("missing vault file, use -f")))
	}

	master, err := vault.MasterKey()
	if err != nil {
		return emit(res.Fail(err))
	}

	username, err := requireUser()
	if err != nil {
		return emit(res.Fail(err))
	}

	password := flagPassword
	generated := false
	switch {
	case password != "":
	case flagGenerate:
		password, err = vault.GeneratePassword(flagLength)
		if err != nil {
			return emit(res.Fail(err))
		}
		generated = true
	default:
		password, err = promptPasswordVerified("Password")
		if err != nil {
			return emit(res.Fail(err))
		}
	}

	if err := op(flagFile, master, username, password); err != nil {
		return emit(res.Fail(err))
	}

	response := map[string]any{"file": flagFile, "user": username}
	if generated {
		response["password"] = password
	}
	return emit(res.Success(response))
}

// requireUser returns the -U flag or prompts for a username.
func requireUser() (string, error) {
	if flagUser != "" {
		return flagUser, nil
	}
	return promptLine("User name")
}
