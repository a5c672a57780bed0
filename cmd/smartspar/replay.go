package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-smartspar/internal/log"
	"github.com/teslashibe/go-smartspar/pkg/classifier"
	"github.com/teslashibe/go-smartspar/pkg/history"
	"github.com/teslashibe/go-smartspar/pkg/pose"
	"github.com/teslashibe/go-smartspar/pkg/recording"
	"github.com/teslashibe/go-smartspar/pkg/session"
)

var (
	replayPaced  bool
	replaySave   bool
	replayPreset string
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Classify a keypoint recording offline and print its stats",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplayCmd,
	}
	cmd.Flags().BoolVar(&replayPaced, "paced", false, "replay at recorded speed instead of as fast as possible")
	cmd.Flags().BoolVar(&replaySave, "save", false, "store the replay report in history")
	cmd.Flags().StringVar(&replayPreset, "preset", "", "classifier preset (default, strict, sensitive); overrides the config file")
	return cmd
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	path := args[0]

	ccfg := cfg.Classifier.Classifier()
	if replayPreset != "" {
		p, ok := classifier.Preset(replayPreset)
		if !ok {
			return fmt.Errorf("unknown classifier preset %q", replayPreset)
		}
		ccfg = p
	}

	r, err := recording.Open(path, replayPaced)
	if err != nil {
		return err
	}
	defer r.Close()

	// Cooldowns and durations follow recorded time, not wall time
	reg := session.NewRegistry(ccfg, r.Clock)
	sess := reg.GetOrCreate("replay-" + recording.SessionID(path))
	start := r.Clock()
	out := cmd.OutOrStdout()

	err = sess.Run(cmd.Context(), r, func(_ *pose.Frame, res classifier.Result) {
		switch {
		case res.Counted:
			fmt.Fprintf(out, "%8.2fs  %-8s %s\n", r.Clock().Sub(start).Seconds(), res.Punch.Type, res.Punch.Side)
		case res.GuardDropped:
			fmt.Fprintf(out, "%8.2fs  %s\n", r.Clock().Sub(start).Seconds(), classifier.GuardDownLabel)
		}
	})
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	rep, err := reg.End(sess.ID)
	if err != nil {
		return err
	}
	if err := printJSON(out, rep); err != nil {
		return err
	}

	if replaySave {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()
		if err := store.Save(cmd.Context(), rep); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		log.Info("replay saved", "session", rep.SessionID, "db", cfg.History.Path)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
