package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"advisor/internal/adapters/kafka"
	"advisor/internal/bootstrap"
	"advisor/internal/events"
	"advisor/internal/pipeline"
	"advisor/pkg/errors"
)

func main() {
	root := &cobra.Command{
		Use:           "advisor",
		Short:         "Turn an investment goal into a portfolio recommendation report",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(runCMD(), eventsCMD(), checkCMD())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runCMD() *cobra.Command {
	var outPath string
	var quiet bool

	cmd := &cobra.Command{
		Use:   `run "<goal>"`,
		Short: "Run the six-stage advisory pipeline for a goal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			goal := strings.Join(args, " ")
			con := newConsole(cmd.OutOrStdout(), cmd.ErrOrStderr(), quiet)

			c := bootstrap.NewContainer()
			defer c.Shutdown()

			if err := c.Init(ctx, pipeline.WithEventSink(con)); err != nil {
				return err
			}
			c.StartMetricsServer()

			run, err := c.Business.Orchestrator.Run(ctx, goal, con.Progress)
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := os.WriteFile(outPath, []byte(run.Report()), 0o644); err != nil {
					return errors.Wrapf(err, "write report to %s", outPath)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the final report to this file")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress lines on stderr")
	return cmd
}

func eventsCMD() *cobra.Command {
	var topics []string
	var fromStart bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow stage and run events published to Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := bootstrap.NewContainer()
			defer c.Shutdown()

			if err := c.InitEventConsumer(topics, fromStart); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			err := c.Adapters.EventConsumer.Consume(ctx, func(_ context.Context, msg kafka.Message) error {
				env, err := events.Decode(msg.Value)
				if err != nil {
					return err
				}
				printEvent(out, env)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringSliceVar(&topics, "topic", nil, "topics to follow (default KAFKA_STAGE_TOPIC and KAFKA_RUN_TOPIC)")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "replay from the first offset when the group has none")
	return cmd
}

func checkCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration, templates and model access without running a stage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := bootstrap.NewContainer()
			defer c.Shutdown()

			if err := c.Init(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d tools, %d templates, models %s\n",
				len(c.Business.ToolRegistry.List()),
				len(c.Business.Templates.List()),
				strings.Join(c.Config.AI.Models(), ", "))
			return nil
		},
	}
}
