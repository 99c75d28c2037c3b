package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scryhq/ingestor/internal/core/config"
	"github.com/scryhq/ingestor/internal/infra/queue"
	"github.com/scryhq/ingestor/internal/infra/storage/postgres"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent ingestion activity and queue depth",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of recent records to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if cfg.Queue.URL != "" {
		client, err := queue.NewClient(cfg.Queue.Client())
		if err != nil {
			slog.Warn("Failed to connect to Redis", "error", err)
		} else {
			defer func() {
				_ = client.Close()
			}()
			depth, err := client.Depth(ctx)
			if err != nil {
				slog.Warn("Failed to read queue depth", "error", err)
			} else {
				fmt.Printf("Queued tasks: %d\n", depth)
			}
		}
	}

	if cfg.Database.URL == "" {
		fmt.Println("No database configured, no records to show")
		return
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	repo := postgres.NewRecordRepo(db)

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		slog.Error("Failed to count records", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Records: %d success, %d error\n\n", counts["success"], counts["error"])

	records, err := repo.Recent(ctx, statusLimit)
	if err != nil {
		slog.Error("Failed to list records", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "TIME\tADAPTER\tSOURCE\tSTATUS\tCLASSIFICATION\tMESSAGE")
	for _, r := range records {
		msg := r.Message
		if len(msg) > 60 {
			msg = msg[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.AdapterType,
			r.SourceID,
			r.Status,
			r.Classification,
			msg,
		)
	}
	_ = w.Flush()
}
