// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/libris"
	"github.com/poiesic/libris/ai"
	"github.com/poiesic/libris/ingestion"
	"github.com/poiesic/libris/jobs"
	"github.com/poiesic/libris/storage"
	"github.com/poiesic/libris/storage/qdrant"
	"github.com/urfave/cli/v2"
)

func main() {
	connectionFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "qdrant-host",
			Usage: "Qdrant server host",
			Value: "localhost",
		},
		&cli.IntFlag{
			Name:  "qdrant-port",
			Usage: "Qdrant gRPC port",
			Value: 6334,
		},
		&cli.StringFlag{
			Name:    "qdrant-api-key",
			Usage:   "Qdrant API key (required for Qdrant Cloud)",
			EnvVars: []string{"QDRANT_API_KEY"},
		},
		&cli.BoolFlag{
			Name:  "tls",
			Usage: "Use TLS for the Qdrant connection",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:    "embedding-api-key",
			Usage:   "Embedding service API key (required in remote mode)",
			EnvVars: []string{"EMBEDDING_API_KEY"},
		},
		&cli.StringFlag{
			Name:  "mode",
			Usage: "Embedding backend mode (local, remote)",
			Value: "local",
		},
		&cli.Uint64Flag{
			Name:  "vector-size",
			Usage: "Dense embedding dimension, must match the model",
			Value: 768,
		},
		&cli.StringFlag{
			Name:  "archive",
			Usage: "Path to the raw-document archive directory (empty disables archiving)",
		},
	}

	app := &cli.App{
		Name:  "libris",
		Usage: "Documentation ingestion and hybrid search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest documents or zip archives into the index",
				ArgsUsage: "<file>...",
				Action:    ingestCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "library",
						Usage:    "Library name the document belongs to",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "version",
						Usage: "Library version",
					},
					&cli.BoolFlag{
						Name:  "async",
						Usage: "Enqueue a background job and print its id instead of waiting",
					},
					&cli.DurationFlag{
						Name:  "job-timeout",
						Usage: "Hard deadline for an async job",
						Value: jobs.DefaultJobTimeout,
					},
				}, connectionFlags...),
			},
			{
				Name:  "job",
				Usage: "Inspect and maintain background ingestion jobs",
				Subcommands: []*cli.Command{
					{
						Name:      "status",
						Usage:     "Print the current record of a job",
						ArgsUsage: "<job-id>",
						Action:    jobStatusCommand,
						Flags:     connectionFlags,
					},
					{
						Name:   "purge",
						Usage:  "Remove finished jobs older than the retention window",
						Action: jobPurgeCommand,
						Flags: append([]cli.Flag{
							&cli.DurationFlag{
								Name:  "retention",
								Usage: "Keep finished jobs younger than this",
								Value: jobs.DefaultRetention,
							},
						}, connectionFlags...),
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Run a hybrid query over the indexed chunks",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "library",
						Usage: "Restrict results to one library",
					},
					&cli.StringFlag{
						Name:  "version",
						Usage: "Restrict results to one version",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: qdrant.DefaultQueryLimit,
					},
					&cli.StringFlag{
						Name:  "fusion",
						Usage: "Rank fusion method (rrf, dbsf)",
						Value: "rrf",
					},
				}, connectionFlags...),
			},
			{
				Name:   "delete",
				Usage:  "Remove every indexed chunk of a library",
				Action: deleteCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "library",
						Usage:    "Library name to delete",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "version",
						Usage: "Delete only this version",
					},
				}, connectionFlags...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openFromFlags(ctx context.Context, c *cli.Context, extra ...libris.Option) (*libris.Libris, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithModel(c.String("embedding-model")),
		ai.WithAPIKey(c.String("embedding-api-key")),
		ai.WithMode(ai.Mode(c.String("mode"))),
	)

	storeConfig := &qdrant.Config{
		Host:       c.String("qdrant-host"),
		Port:       c.Int("qdrant-port"),
		APIKey:     c.String("qdrant-api-key"),
		UseTLS:     c.Bool("tls"),
		VectorSize: c.Uint64("vector-size"),
	}

	opts := []libris.Option{
		libris.WithAIConfig(aiConfig),
		libris.WithStoreConfig(storeConfig),
		libris.WithArchivePath(c.String("archive")),
	}
	return libris.Open(ctx, append(opts, extra...)...)
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("expected at least one file argument")
	}

	ctx := context.Background()
	lib, err := openFromFlags(ctx, c, libris.WithJobTimeout(c.Duration("job-timeout")))
	if err != nil {
		return err
	}
	defer lib.Close()

	for _, path := range c.Args().Slice() {
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("reading %s: %w", path, readErr)
		}

		req := ingestion.Request{
			Content:  content,
			Filename: filepath.Base(path),
			Library:  c.String("library"),
			Version:  c.String("version"),
		}

		if c.Bool("async") {
			id, enqueueErr := lib.IngestAsync(ctx, req)
			if enqueueErr != nil {
				return enqueueErr
			}
			// Close waits for in-flight jobs, so the job still finishes;
			// the id is printed first so scripts can start polling.
			fmt.Println(id)
			continue
		}

		req.Progress = func(stage string) {
			fmt.Fprintln(os.Stderr, stage)
		}
		result, ingestErr := lib.Ingest(ctx, req)
		if ingestErr != nil {
			return fmt.Errorf("ingesting %s: %w", path, ingestErr)
		}
		if err := printJSON(result); err != nil {
			return err
		}
	}
	return nil
}

func jobStatusCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one job id argument")
	}

	ctx := context.Background()
	lib, err := openFromFlags(ctx, c)
	if err != nil {
		return err
	}
	defer lib.Close()

	job, err := lib.JobStatus(ctx, c.Args().First())
	if err != nil {
		return err
	}
	return printJSON(job)
}

func jobPurgeCommand(c *cli.Context) error {
	ctx := context.Background()
	lib, err := openFromFlags(ctx, c)
	if err != nil {
		return err
	}
	defer lib.Close()

	removed, err := lib.PurgeJobs(ctx, c.Duration("retention"))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "removed %d finished jobs\n", removed)
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one query argument")
	}

	ctx := context.Background()
	lib, err := openFromFlags(ctx, c)
	if err != nil {
		return err
	}
	defer lib.Close()

	results, err := lib.Search(ctx, c.Args().First(), storage.QueryOptions{
		Library: c.String("library"),
		Version: c.String("version"),
		Limit:   c.Int("limit"),
		Fusion:  c.String("fusion"),
	})
	if err != nil {
		return err
	}
	return printJSON(results)
}

func deleteCommand(c *cli.Context) error {
	ctx := context.Background()
	lib, err := openFromFlags(ctx, c)
	if err != nil {
		return err
	}
	defer lib.Close()

	library := c.String("library")
	version := c.String("version")
	if err := lib.DeleteLibrary(ctx, library, version); err != nil {
		return err
	}
	if version != "" {
		fmt.Fprintf(os.Stderr, "deleted %s@%s\n", library, version)
	} else {
		fmt.Fprintf(os.Stderr, "deleted %s\n", library)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
