package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/spf13/cobra"
)

var (
	invokePayload string
	invokeAll     bool
)

var invokeCmd = &cobra.Command{
	Use:   "invoke [city...]",
	Short: "Run a batch through the pipeline in-process and print the outcome",
	Long: `invoke builds a batch from the given cities, or reads a raw payload with
--payload (a file path, or - for stdin), and runs it through the pipeline
without a queue. By default only the last record's outcome is printed;
--all prints one outcome per record.`,
	RunE: runInvoke,
}

func init() {
	invokeCmd.Flags().StringVar(&invokePayload, "payload", "", "raw batch payload file, or - for stdin")
	invokeCmd.Flags().BoolVar(&invokeAll, "all", false, "print every record's outcome")
	rootCmd.AddCommand(invokeCmd)
}

func runInvoke(cmd *cobra.Command, args []string) error {
	payload, err := invokeInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var result any
	if invokeAll {
		result, err = a.handler.HandleAll(cmd.Context(), payload)
	} else {
		result, err = a.handler.Handle(cmd.Context(), payload)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// invokeInput returns the payload named by --payload, or a batch built from args.
// A single city is sent as a bare query, as a direct invocation would be.
func invokeInput(stdin io.Reader, args []string) ([]byte, error) {
	switch {
	case invokePayload == "-":
		return io.ReadAll(stdin)
	case invokePayload != "":
		return os.ReadFile(invokePayload)
	case len(args) == 1:
		return json.Marshal(domain.CityQuery{City: args[0]})
	case len(args) > 1:
		queries := make([]domain.CityQuery, 0, len(args))
		for _, c := range args {
			queries = append(queries, domain.CityQuery{City: c})
		}
		return domain.EncodeBatch(queries...)
	default:
		return nil, fmt.Errorf("give at least one city or --payload")
	}
}
