package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/spf13/cobra"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Recognize a single face and record attendance",
	Long: `Match one probe against the configured gallery and record attendance
in the configured ledger.

The probe is either a JSON array of floats (--embedding) or an image that is
sent to the embedding server (--image).

Examples:
  face-attendance recognize --image capture.jpg
  face-attendance recognize --embedding probe.json --json`,
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().String("embedding", "", "Path to a JSON file with the probe embedding")
	recognizeCmd.Flags().String("image", "", "Path to an image with one face")
	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
	recognizeCmd.MarkFlagsMutuallyExclusive("embedding", "image")
	recognizeCmd.MarkFlagsOneRequired("embedding", "image")
}

// RecognizeResult is the JSON output of the recognize command.
type RecognizeResult struct {
	Status     string   `json:"status"`
	EmployeeID string   `json:"employee_id,omitempty"`
	Distance   *float64 `json:"distance,omitempty"`
	Timestamp  string   `json:"timestamp,omitempty"`
	Period     string   `json:"period,omitempty"`
}

func readProbe(path string) (embedding.Vector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading embedding file: %w", err)
	}
	var probe embedding.Vector
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parsing embedding file %s: %w", path, err)
	}
	return probe, nil
}

func runRecognize(cmd *cobra.Command, args []string) error {
	embeddingPath := mustGetString(cmd, "embedding")
	imagePath := mustGetString(cmd, "image")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	var res recognition.Result
	if embeddingPath != "" {
		probe, err := readProbe(embeddingPath)
		if err != nil {
			return err
		}
		res, err = a.service.Recognize(ctx, probe)
		if err != nil {
			return err
		}
	} else {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		res, err = a.service.RecognizeImage(ctx, data)
		if err != nil {
			return err
		}
	}

	return outputRecognition(res, jsonOutput)
}

func outputRecognition(res recognition.Result, jsonOutput bool) error {
	out := RecognizeResult{Status: res.Outcome.Status(), EmployeeID: res.Identity}
	if !math.IsInf(res.Distance, 0) {
		d := res.Distance
		out.Distance = &d
	}
	if res.Outcome != recognition.OutcomeNoMatch {
		out.Timestamp = res.Record.Timestamp.Format(ledger.FileTimeLayout)
		out.Period = res.Record.PeriodKey
	}

	if jsonOutput {
		return outputJSON(out)
	}

	switch res.Outcome {
	case recognition.OutcomeRecorded:
		fmt.Printf("Attendance recorded for %s (distance %.4f, period %s)\n", res.Identity, res.Distance, out.Period)
	case recognition.OutcomeAlreadyMarked:
		fmt.Printf("%s is already marked for period %s\n", res.Identity, out.Period)
	default:
		if out.Distance == nil {
			return errors.New("no matching face found: gallery is empty")
		}
		fmt.Printf("No matching face found (closest distance %.4f)\n", res.Distance)
	}
	return nil
}
