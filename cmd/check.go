package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/vat-gateway/internal/api"
	"github.com/sells-group/vat-gateway/internal/vat"
)

var checkConcurrency int

var checkCmd = &cobra.Command{
	Use:   "check VAT_NUMBER...",
	Short: "Verify VAT numbers and print one JSON line per number",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Registration secrets are not needed here.
		c := *cfg
		c.Registration.Enabled = false
		if err := c.Validate(); err != nil {
			return err
		}

		g, err := buildGateway(&c)
		if err != nil {
			return err
		}
		return runChecks(cmd.Context(), g.verifier, args, checkConcurrency, cmd.OutOrStdout())
	},
}

type checkLine struct {
	Input   string  `json:"input"`
	Valid   bool    `json:"valid"`
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Source  string  `json:"source,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// runChecks verifies inputs with at most concurrency in flight and writes the
// results in input order. It fails if any input was rejected.
func runChecks(ctx context.Context, v api.Verifier, inputs []string, concurrency int, w io.Writer) error {
	lines := make([]checkLine, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, in := range inputs {
		g.Go(func() error {
			line := checkLine{Input: in}
			res, err := v.Verify(gctx, in)
			if err != nil {
				line.Error = errorCode(err)
			} else {
				line.Valid = res.Valid
				line.Name = res.Name
				line.Address = res.Address
				line.Source = string(res.Source)
			}
			lines[i] = line
			return nil
		})
	}
	_ = g.Wait()

	enc := json.NewEncoder(w)
	var failed int
	for _, l := range lines {
		if l.Error != "" {
			failed++
		}
		if err := enc.Encode(l); err != nil {
			return eris.Wrap(err, "check: write result")
		}
	}
	if failed > 0 {
		return eris.Errorf("check: %d of %d identifiers could not be verified", failed, len(inputs))
	}
	return nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, vat.ErrInvalidIdentifier):
		return "invalid_identifier"
	case errors.Is(err, vat.ErrUnverifiable):
		return "vat_unverifiable"
	default:
		return err.Error()
	}
}

func init() {
	checkCmd.Flags().IntVar(&checkConcurrency, "concurrency", 4, "maximum verifications in flight")
	rootCmd.AddCommand(checkCmd)
}
