package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"saathi-backend/internal/chat"
)

func newTranscriptCommand() *cobra.Command {
	var (
		sf     storeFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "transcript SESSION_ID",
		Short: "Print the persisted message log of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := sf.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			msgs, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				return chat.ErrSessionNotFound
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(msgs)
			}
			for _, m := range msgs {
				fmt.Fprintf(out, "[%s] %-5s %s\n", m.Timestamp.Format(time.DateTime), m.Sender, m.Text)
			}
			return nil
		},
	}

	sf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stored JSON array")
	return cmd
}

func newResetCommand() *cobra.Command {
	var sf storeFlags

	cmd := &cobra.Command{
		Use:   "reset SESSION_ID",
		Short: "Delete the persisted message log of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := sf.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s cleared\n", args[0])
			return nil
		},
	}

	sf.register(cmd)
	return cmd
}
