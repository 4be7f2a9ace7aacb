// Package main is the reportflow CLI: process spreadsheet reports into the
// database, in single-file or batch mode.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"reportflow/pkg/core/config"
	"reportflow/pkg/core/objstore"
	"reportflow/pkg/core/pipeline"
	"reportflow/pkg/core/store"
	"reportflow/pkg/core/xlsx"
	"reportflow/pkg/models"
)

var (
	registryPath string
	inputDir     string
	noDatabase   bool
	noArchive    bool
)

func main() {
	// Best effort: local runs keep credentials in .env.
	if err := godotenv.Load(); err != nil {
		log.Println("[Main] no .env file found, relying on environment variables")
	}

	rootCmd := &cobra.Command{
		Use:   "reportflow",
		Short: "Process operational spreadsheet reports into PostgreSQL",
		Long: `reportflow resolves incoming spreadsheet files against a declarative
report registry, extracts and transforms their tables, and upserts the
results into PostgreSQL. Successfully processed files are archived.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&registryPath, "registry", "", "Path to a registry YAML (default: built-in registry)")
	rootCmd.PersistentFlags().BoolVar(&noDatabase, "no-db", false, "Skip database writes")
	rootCmd.PersistentFlags().BoolVar(&noArchive, "no-archive", false, "Leave processed files in place")

	processCmd := &cobra.Command{
		Use:   "process [file...]",
		Short: "Process one or more spreadsheet files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runProcess,
	}

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Process every spreadsheet in the input directory",
		Args:  cobra.NoArgs,
		RunE:  runBatch,
	}
	batchCmd.Flags().StringVar(&inputDir, "input-dir", "", "Input directory (default: INPUT_DIR env or ./data/input)")

	checkCmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the report registry and list known reports",
		Args:  cobra.NoArgs,
		RunE:  runCheckConfig,
	}

	rootCmd.AddCommand(processCmd, batchCmd, checkCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadRegistry() (*config.Registry, error) {
	if registryPath != "" {
		return config.LoadRegistryFile(registryPath)
	}
	return config.DefaultRegistry()
}

func buildProcessor(ctx context.Context) (*pipeline.Processor, func(), error) {
	registry, err := loadRegistry()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load registry: %w", err)
	}

	procCfg := config.LoadProcessingConfig()
	if noDatabase {
		procCfg.EnableDatabase = false
	}

	var persister pipeline.Persister
	var auditor pipeline.Auditor
	cleanup := func() {}
	if procCfg.EnableDatabase {
		dbCfg, err := config.LoadDBConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve database credentials: %w", err)
		}
		pool, err := store.Connect(ctx, dbCfg)
		if err != nil {
			return nil, nil, err
		}
		cleanup = pool.Close

		statusRepo := store.NewStatusRepo(pool)
		if err := statusRepo.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		persister = store.NewService(pool, procCfg.BatchSize)
		auditor = statusRepo
	}

	var archiver pipeline.Archiver
	if !noArchive {
		local := objstore.NewLocalStore(".")
		archiver = objstore.NewArchiver(local, procCfg.ArchiveDir)
	}

	proc := pipeline.NewProcessor(registry, xlsx.NewLoader(), persister, nil, archiver, auditor, procCfg)
	return proc, cleanup, nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	proc, cleanup, err := buildProcessor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	batch := proc.ProcessBatch(ctx, args)
	return report(batch)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	proc, cleanup, err := buildProcessor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	dir := inputDir
	if dir == "" {
		dir = config.LoadProcessingConfig().InputDir
	}
	keys, err := listSpreadsheets(dir)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		log.Printf("[Main] no spreadsheet files found in %s", dir)
		return nil
	}

	batch := proc.ProcessBatch(ctx, keys)
	return report(batch)
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return fmt.Errorf("registry invalid: %w", err)
	}
	fmt.Printf("Registry OK: %d report types\n", registry.Len())
	for _, name := range registry.Names() {
		report, _ := registry.Report(name)
		fmt.Printf("  %s (%d sheets)\n", name, len(report.Sheets))
	}
	return nil
}

func listSpreadsheets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", dir, err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xls") {
			keys = append(keys, filepath.Join(dir, e.Name()))
		}
	}
	return keys, nil
}

func report(batch models.BatchResult) error {
	out, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if batch.FilesFailed > 0 || len(batch.Errors) > 0 {
		return fmt.Errorf("%d file(s) failed", batch.FilesFailed)
	}
	return nil
}
