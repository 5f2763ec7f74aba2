package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"call-classifier/internal/app"
	"call-classifier/internal/chain"

	"github.com/spf13/cobra"
)

// sampleEvent is the demo call classified by run --sample.
var sampleEvent = chain.Event{
	"type":    "newcall",
	"call_id": "call_1",
	"text":    "Customer called to inquire about pricing for bulk orders.",
}

var (
	runEvent  string
	runSample bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dispatch one event and print the outcome as JSON",
	Long: `Dispatch one event through the chain and print the outcome.

The event is read from --event, from --sample, or from stdin.`,
	Args: cobra.NoArgs,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().StringVar(&runEvent, "event", "", "event as a JSON object")
	runCmd.Flags().BoolVar(&runSample, "sample", false, "dispatch the built-in sample newcall event")
	runCmd.MarkFlagsMutuallyExclusive("event", "sample")
}

type runOutput struct {
	EventID string `json:"event_id"`
	Matched bool   `json:"matched"`
	Step    string `json:"step,omitempty"`
	Result  any    `json:"result"`
}

func runOnce(cmd *cobra.Command, args []string) error {
	ev, err := readEvent(cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := app.Init(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.Handle(cmd.Context(), ev)
	if err != nil {
		if out.Step != "" {
			return fmt.Errorf("step %s: %w", out.Step, err)
		}
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(runOutput{EventID: out.EventID, Matched: out.Matched, Step: out.Step, Result: out.Result})
}

func readEvent(stdin io.Reader) (chain.Event, error) {
	if runSample {
		return sampleEvent, nil
	}

	var raw []byte
	if runEvent != "" {
		raw = []byte(runEvent)
	} else {
		if f, ok := stdin.(*os.File); ok {
			if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
				return nil, errors.New("no event given: use --event, --sample or pipe JSON on stdin")
			}
		}
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = b
	}

	var ev chain.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}
	return ev, nil
}
