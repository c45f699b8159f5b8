package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"saathi-backend/internal/locale"
	"saathi-backend/internal/models"
	"saathi-backend/internal/services"
)

func newAskCommand() *cobra.Command {
	var (
		endpoint string
		language string
		timeout  time.Duration
		local    bool
	)

	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Send one question to the answer service and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.AnswerRequest{
				Question:  strings.Join(args, " "),
				Language:  language,
				SessionID: "chatctl-" + uuid.NewString(),
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			}

			var (
				resp *models.AnswerResponse
				err  error
			)
			if local {
				phrases, perr := locale.Default()
				if perr != nil {
					return perr
				}
				resp, err = services.NewAnswerEngine(phrases, nil).Answer(cmd.Context(), req)
			} else {
				resp, err = services.NewAnswerClient(endpoint, timeout).Ask(cmd.Context(), req)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Answer)
			if len(resp.Suggestions) > 0 {
				fmt.Fprintln(out)
				for _, s := range resp.Suggestions {
					fmt.Fprintf(out, "  - %s\n", s)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", envOr("ANSWER_SERVICE_URL", "http://localhost:8080/api/chatbot"), "answer service URL")
	cmd.Flags().StringVarP(&language, "language", "l", "en", "language tag sent with the question")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "request timeout")
	cmd.Flags().BoolVar(&local, "local", false, "answer with the built-in engine instead of calling the service")
	return cmd
}
