package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/comigor/reflexion-go/internal/config"
	"github.com/comigor/reflexion-go/internal/llm"
	"github.com/comigor/reflexion-go/internal/logger"
	"github.com/comigor/reflexion-go/internal/refine"
	"github.com/comigor/reflexion-go/internal/responder"
	apiserver "github.com/comigor/reflexion-go/internal/server"
	"github.com/comigor/reflexion-go/internal/transcript"
)

var version = "dev"

// app holds everything built from the configuration.
type app struct {
	cfg        *config.Config
	refiner    *refine.Controller
	responder  *responder.Responder
	transcript *transcript.Store
}

func newApp(configPath string) (*app, error) {
	if configPath != "" {
		if err := os.Setenv("CONFIG_PATH", configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetLevel(cfg.Log.Level)

	client := llm.NewClient(cfg.LLM)

	a := &app{cfg: cfg}
	refineOpts := []refine.Option{
		refine.WithPolicy(refine.MaxMessages(cfg.Refine.MaxMessages)),
		refine.WithMaxSteps(cfg.Refine.MaxSteps),
	}
	var responderOpts []responder.Option
	if cfg.Transcript.Path != "" {
		a.transcript = transcript.Open(cfg.Transcript.Path)
		refineOpts = append(refineOpts, refine.WithRecorder(a.transcript))
		responderOpts = append(responderOpts, responder.WithRecorder(a.transcript))
	}

	a.refiner = refine.New(
		refine.NewGenerator(llm.Instrument(client, refine.StepGenerate), cfg.LLM.Model),
		refine.NewCritic(llm.Instrument(client, refine.StepReflect), cfg.LLM.Model),
		refineOpts...,
	)
	a.responder = responder.New(llm.Instrument(client, responder.StepRespond), cfg.LLM.Model, cfg.Responder.AnswerWords, responderOpts...)
	return a, nil
}

func (a *app) Close() {
	if a.transcript != nil {
		if err := a.transcript.Close(); err != nil {
			logger.L.Warn("transcript close error", "error", err)
		}
	}
}

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "reflexion",
		Short:         "Draft-and-critique tweet refinement and structured research answers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./config.yaml)")

	withApp := func(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd, a, args)
		}
	}

	root.AddCommand(&cobra.Command{
		Use:   "tweet <request>",
		Short: "Generate a tweet and refine it with critique rounds",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			res, err := a.refiner.Run(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Output.Content)
			return nil
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "answer <question>",
		Short: "Answer a question with self-critique and search queries (JSON)",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			answer, err := a.responder.Respond(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(answer)
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve both pipelines over HTTP",
		Args:  cobra.NoArgs,
		RunE: withApp(func(_ *cobra.Command, a *app, _ []string) error {
			serverAddr := fmt.Sprintf("%s:%s", a.cfg.Server.Host, a.cfg.Server.Port)
			logger.L.Info("starting server", "address", serverAddr)
			return http.ListenAndServe(serverAddr, apiserver.NewHandler(a.refiner, a.responder))
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "mcp",
		Short: "Serve both pipelines as MCP tools on stdio",
		Args:  cobra.NoArgs,
		RunE: withApp(func(_ *cobra.Command, a *app, _ []string) error {
			return server.ServeStdio(apiserver.NewMCPServer(a.refiner, a.responder, version))
		}),
	})

	if err := root.Execute(); err != nil {
		logger.L.Error("command failed", "error", err)
		os.Exit(1)
	}
}
