package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couchcryptid/clima-ingest-service/internal/store"
	"github.com/spf13/cobra"
)

var consistentRead bool

var getCmd = &cobra.Command{
	Use:   "get city [city...]",
	Short: "Print the stored observation for each city",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGet,
}

var deleteCmd = &cobra.Command{
	Use:   "delete city [city...]",
	Short: "Remove the stored observation for each city",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show the observation table for the active profile",
	Args:  cobra.NoArgs,
	RunE:  runDescribe,
}

func init() {
	getCmd.Flags().BoolVar(&consistentRead, "consistent", false, "use a strongly consistent read")
	rootCmd.AddCommand(getCmd, deleteCmd, describeCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	_, _, s, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	consistency := store.Eventual
	if consistentRead {
		consistency = store.Strong
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	missing := 0
	for _, city := range args {
		obs, err := s.Get(cmd.Context(), city, consistency)
		if errors.Is(err, store.ErrNotFound) {
			missing++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: not found\n", city)
			continue
		}
		if err != nil {
			return err
		}
		if err := enc.Encode(obs); err != nil {
			return err
		}
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d cities not found", missing, len(args))
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	_, logger, s, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	for _, city := range args {
		if err := s.Delete(cmd.Context(), city); err != nil {
			return err
		}
		logger.Info("observation deleted", "city", city)
	}
	return nil
}

func runDescribe(cmd *cobra.Command, args []string) error {
	_, _, s, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	info, err := s.Describe(cmd.Context())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
