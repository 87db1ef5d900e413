package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/orderdesk-cli/internal/model"
)

var (
	processID      string
	processSubject string
	processBody    string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a single customer email",
	Long:  "Runs one email through the full pipeline and prints the run result as JSON. The body comes from --body, or from stdin when --body is omitted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		body := processBody
		if body == "" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return eris.Wrap(err, "read email body from stdin")
			}
			body = string(data)
		}
		if body == "" {
			return eris.New("email body is required (--body or stdin)")
		}

		id := processID
		if id == "" {
			id = uuid.New().String()
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Router.Process(ctx, model.Email{
			RequestID: id,
			Subject:   processSubject,
			Body:      body,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	processCmd.Flags().StringVar(&processID, "id", "", "request id for the email (defaults to a generated one)")
	processCmd.Flags().StringVar(&processSubject, "subject", "", "email subject")
	processCmd.Flags().StringVar(&processBody, "body", "", "email body (reads stdin when omitted)")
	rootCmd.AddCommand(processCmd)
}
