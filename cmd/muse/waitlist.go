package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/justestif/muse/internal/waitlist"
)

func newWaitlistCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "waitlist",
		Short: "Query or add to a running server's waitlist",
	}
	cmd.PersistentFlags().StringVar(&server, "server", "http://localhost:3000", "Base URL of the Muse server")

	check := &cobra.Command{
		Use:   "check <email>",
		Short: "Check whether an email is on the waitlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := waitlist.NewClient(server).Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	add := &cobra.Command{
		Use:   "add <email> <name>",
		Short: "Add someone to the waitlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := waitlist.NewClient(server).Register(cmd.Context(), args[0], args[1])
			if errors.Is(err, waitlist.ErrAlreadyRegistered) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already on the waitlist\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s to the waitlist\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(check, add)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
