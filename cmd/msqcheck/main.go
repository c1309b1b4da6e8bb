// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command msqcheck soaks the msq queues under concurrent load and checks
// element conservation and node accounting.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"code.hybscloud.com/msq/internal/soak"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "msqcheck",
		Short:        "Michael–Scott queue checker",
		Long:         "msqcheck drives the msq queues with concurrent producers and consumers and verifies that no element is lost or duplicated and no node is leaked.",
		SilenceUsage: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().String("log-level", os.Getenv("MSQ_LOG_LEVEL"), "Log level: debug|info|warn|error (default info)")
	rootCmd.PersistentFlags().String("log-format", os.Getenv("MSQ_LOG_FORMAT"), "Log format: text|json (default text)")

	rootCmd.AddCommand(newSoakCmd(stderr))
	rootCmd.AddCommand(newTeardownCmd(stdout, stderr))
	return rootCmd
}

func newSoakCmd(stderr io.Writer) *cobra.Command {
	soakCmd := &cobra.Command{
		Use:   "soak",
		Short: "Run producers and consumers for a bounded time",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd, stderr)
			if err != nil {
				return err
			}
			strategy, _ := cmd.Flags().GetString("strategy")
			producers, _ := cmd.Flags().GetInt("producers")
			consumers, _ := cmd.Flags().GetInt("consumers")
			duration, _ := cmd.Flags().GetDuration("duration")
			limit, _ := cmd.Flags().GetInt("limit")
			chunk, _ := cmd.Flags().GetInt("chunk")
			checked, _ := cmd.Flags().GetBool("checked")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			rep, err := soak.Run(ctx, soak.Config{
				Strategy:  strategy,
				Producers: producers,
				Consumers: consumers,
				Duration:  duration,
				Limit:     limit,
				Chunk:     chunk,
				Checked:   checked,
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			return rep.Err()
		},
	}
	soakCmd.Flags().String("strategy", envString("MSQ_STRATEGY", soak.StrategyRefCount), "Reclamation strategy: immediate|refcount|epoch|locked")
	soakCmd.Flags().Int("producers", envInt("MSQ_PRODUCERS", 4), "Producer goroutines")
	soakCmd.Flags().Int("consumers", envInt("MSQ_CONSUMERS", 4), "Consumer goroutines")
	soakCmd.Flags().Duration("duration", envDuration("MSQ_DURATION", 2*time.Second), "Production window")
	soakCmd.Flags().Int("limit", envInt("MSQ_LIMIT", 0), "Max elements per producer (default 1048576)")
	soakCmd.Flags().Int("chunk", envInt("MSQ_CHUNK", 0), "First arena segment size (default 64)")
	soakCmd.Flags().Bool("checked", os.Getenv("MSQ_CHECKED") == "1", "Count touches of freed nodes")
	return soakCmd
}

func newTeardownCmd(stdout, stderr io.Writer) *cobra.Command {
	teardownCmd := &cobra.Command{
		Use:   "teardown",
		Short: "Enqueue n elements, dequeue some, close and verify every node is released",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd, stderr)
			if err != nil {
				return err
			}
			strategy, _ := cmd.Flags().GetString("strategy")
			n, _ := cmd.Flags().GetInt("n")
			k, _ := cmd.Flags().GetInt("dequeue")
			if n < 0 || k < 0 || k > n {
				return fmt.Errorf("invalid --n/--dequeue; need 0 <= dequeue <= n")
			}

			rep, err := soak.Teardown(soak.Config{Strategy: strategy, Producers: 1, Consumers: 1, Checked: true}, n, k)
			if err != nil {
				return err
			}
			logger.Info("teardown",
				"strategy", strategy,
				"enqueued", n,
				"dequeued", k,
				"allocs", rep.Allocs,
				"frees", rep.Frees,
				"double_frees", rep.DoubleFrees)
			fmt.Fprintf(stdout, "allocs=%d frees=%d live=%d double_frees=%d\n", rep.Allocs, rep.Frees, rep.Live(), rep.DoubleFrees)
			if rep.Allocs != int64(n)+1 || rep.Live() != 0 || rep.DoubleFrees != 0 {
				return fmt.Errorf("teardown %s: want allocs=frees=%d, no double frees", strategy, n+1)
			}
			return nil
		},
	}
	teardownCmd.Flags().String("strategy", envString("MSQ_STRATEGY", soak.StrategyRefCount), "Reclamation strategy: immediate|refcount|epoch")
	teardownCmd.Flags().Int("n", 1000, "Elements to enqueue")
	teardownCmd.Flags().Int("dequeue", 0, "Elements to dequeue before close")
	return teardownCmd
}

func newLogger(cmd *cobra.Command, w io.Writer) (*slog.Logger, error) {
	levelStr, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	var level slog.Level
	if levelStr != "" {
		if err := level.UnmarshalText([]byte(levelStr)); err != nil {
			return nil, fmt.Errorf("invalid --log-level %q; use debug|info|warn|error", levelStr)
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q; use text|json", format)
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
