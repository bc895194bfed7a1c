package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robalyx/guardian/internal/export"
	"github.com/robalyx/guardian/internal/setup"
	"github.com/robalyx/guardian/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// ExportLogDir specifies where export log files are stored.
const ExportLogDir = "logs/export_logs"

var ErrSaltRequired = errors.New("a salt is required when hashing user IDs")

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "export",
		Usage: "Export the moderation audit log to CSV and SQLite files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "exports",
				Usage:   "Base output directory for export files",
			},
			&cli.StringSliceFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Formats to write (csv, sqlite); all when omitted",
			},
			&cli.StringFlag{
				Name:    "hash-type",
				Aliases: []string{"t"},
				Value:   string(export.HashTypeNone),
				Usage:   "How user IDs are written (none, sha256 or argon2id)",
			},
			&cli.StringFlag{
				Name:    "salt",
				Aliases: []string{"s"},
				Usage:   "Salt for hashing user IDs, prompted for when hashing and omitted",
			},
			&cli.StringFlag{
				Name:    "export-version",
				Aliases: []string{"v"},
				Value:   "1.0.0",
				Usage:   "Export version",
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Value:   "Guardian audit log export",
				Usage:   "Export description",
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"c"},
				Value:   1,
				Usage:   "Number of concurrent hash operations",
			},
			&cli.UintFlag{
				Name:    "iterations",
				Aliases: []string{"i"},
				Usage:   "Number of hash iterations (1 for sha256, 16 for argon2id when omitted)",
			},
			&cli.UintFlag{
				Name:    "memory",
				Aliases: []string{"m"},
				Value:   16,
				Usage:   "Memory to use for Argon2id in MB",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Value: export.DefaultBatchSize,
				Usage: "Audit log entries read per query",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			// Build the export configuration before touching the database
			config, err := getExportConfig(c)
			if err != nil {
				return fmt.Errorf("failed to get export configuration: %w", err)
			}

			formats, err := export.ParseFormats(c.StringSlice("format"))
			if err != nil {
				return err
			}

			// Initialize application with required dependencies
			app, err := setup.InitializeApp(ctx, telemetry.ServiceExport, ExportLogDir)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.Cleanup(ctx)

			// Create timestamped output directory
			timestamp := time.Now().UTC().Format("2006-01-02_150405")
			outDir := filepath.Join(c.String("output"), timestamp)

			summary, err := export.New(app.DB.Model().Activity(), outDir, config, formats, app.Logger).Run(ctx)
			if err != nil {
				return fmt.Errorf("failed to export audit log: %w", err)
			}

			app.Logger.Info("Files written",
				zap.String("outDir", outDir),
				zap.Int("records", summary.Records),
				zap.Int("users", summary.Users))

			return nil
		},
	}

	return app.Run(context.Background(), os.Args)
}

// getExportConfig reads the export configuration from flags, prompting for
// the salt when hashing is requested without one.
func getExportConfig(c *cli.Command) (*export.Config, error) {
	hashType := export.HashType(c.String("hash-type"))
	if !hashType.Valid() {
		return nil, fmt.Errorf("%w: %s", export.ErrUnsupportedHashType, hashType)
	}

	config := &export.Config{
		ExportVersion: c.String("export-version"),
		Description:   c.String("description"),
		HashType:      string(hashType),
		Salt:          c.String("salt"),
		Concurrency:   int(c.Int("concurrency")),
		BatchSize:     int(c.Int("batch-size")),
		Iterations:    uint32(c.Uint("iterations")), //nolint:gosec // -
	}

	if hashType == export.HashTypeNone {
		config.Iterations = 0
		return config, nil
	}

	if hashType == export.HashTypeArgon2id {
		config.Memory = uint32(c.Uint("memory")) //nolint:gosec // -
	}

	if config.Iterations == 0 {
		config.Iterations = 1
		if hashType == export.HashTypeArgon2id {
			config.Iterations = 16
		}
	}

	if config.Salt == "" {
		salt, err := promptString(bufio.NewReader(os.Stdin), "Enter salt for hashing user IDs")
		if err != nil {
			return nil, fmt.Errorf("failed to read salt: %w", err)
		}
		if salt == "" {
			return nil, ErrSaltRequired
		}
		config.Salt = salt
	}

	return config, nil
}

// promptString prompts for a string value.
func promptString(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt + ": ")

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(input), nil
}
