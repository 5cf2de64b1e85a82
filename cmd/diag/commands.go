package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-vision/internal/application"
	"github.com/bryanwahyu/automaton-vision/internal/application/ingest"
	"github.com/bryanwahyu/automaton-vision/internal/bootstrap"
	"github.com/bryanwahyu/automaton-vision/internal/config"
	"github.com/bryanwahyu/automaton-vision/internal/diag"
	"github.com/bryanwahyu/automaton-vision/internal/infra/storage"
	"github.com/bryanwahyu/automaton-vision/internal/logger"
)

type options struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

// RootCommand creates and returns the root command
func RootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "diag",
		Short:         "Operator checks for the image analysis pipeline",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if path == "" {
				path = "config.yaml"
				if v := os.Getenv("CONFIG_PATH"); v != "" {
					path = v
				}
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("config load error: %w", err)
			}
			opts.cfg = cfg

			// diagnostics print to stdout; keep the log quiet unless asked
			level := cfg.Log.Level
			if level == "info" {
				level = "warn"
			}
			opts.log, err = logger.New(level, cfg.Log.Development)
			return err
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $CONFIG_PATH or config.yaml)")

	rootCmd.AddCommand(
		bucketCommand(opts),
		simulateCommand(opts),
		analyzeCommand(opts),
		uploadCommand(opts),
	)
	return rootCmd
}

func (o *options) objects(ctx context.Context) (*storage.Store, error) {
	c := o.cfg.Minio
	return storage.New(ctx, c.Endpoint, c.Region, c.BucketName, c.AccessKey, c.SecretKey, c.UseSSL)
}

func bucketCommand(opts *options) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "bucket",
		Short: "List uploaded images in the configured bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.objects(cmd.Context())
			if err != nil {
				return err
			}
			return diag.ListBucket(cmd.Context(), cmd.OutOrStdout(), store, prefix)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only list keys with this prefix")
	return cmd
}

func simulateCommand(opts *options) *cobra.Command {
	var bucket, key string
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the ingestion pipeline for one object as an upload trigger would",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.New(cmd.Context(), opts.cfg, opts.log, true)
			if err != nil {
				return err
			}
			defer app.Close()

			if bucket == "" {
				bucket = app.Objects.Bucket()
			}
			svc := &ingest.Service{
				Repo:   app.Repo,
				Vision: app.Vision,
				Clock:  application.SystemClock{},
				Log:    opts.log,
			}
			res, err := diag.Simulate(cmd.Context(), cmd.OutOrStdout(), svc, bucket, key)
			if err != nil {
				return err
			}
			if res.StatusCode != 200 {
				return fmt.Errorf("pipeline returned status %d", res.StatusCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket name (default: configured bucket)")
	cmd.Flags().StringVar(&key, "key", "", "object key to process")
	cmd.MarkFlagRequired("key")
	return cmd
}

func analyzeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze KEY...",
		Short: "Print labels, faces and moderation flags for objects without storing anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := opts.objects(ctx)
			if err != nil {
				return err
			}
			awsCfg, err := bootstrap.AWSConfig(ctx, opts.cfg)
			if err != nil {
				return err
			}
			v := bootstrap.NewVision(opts.cfg, awsCfg, store)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "AI IMAGE ANALYSIS STARTING...")
			failed := diag.Analyze(ctx, out, v, store.Bucket(), args)
			fmt.Fprintln(out, "\nAnalysis complete!")
			if failed > 0 {
				return fmt.Errorf("%d of %d images failed", failed, len(args))
			}
			return nil
		},
	}
}

func uploadCommand(opts *options) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a local image to the bucket, firing the upload trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.objects(cmd.Context())
			if err != nil {
				return err
			}
			if key == "" {
				key = filepath.Base(args[0])
			}
			loc, err := store.Upload(cmd.Context(), args[0], key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s\n", loc)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "object key (default: file name)")
	return cmd
}
