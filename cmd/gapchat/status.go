package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/4xmen/gapchat/internal/store"
	"github.com/4xmen/gapchat/pkg/config"
)

type appStatus struct {
	GeneratedAt     time.Time
	Environment     string
	Port            string
	StoreDriver     string
	DatabasePath    string
	AssetDriver     string
	FileStoragePath string
	Stats           store.Stats
	DBSize          int64
	DBWALSize       int64
	DBSHMSize       int64
	UploadDirSize   int64
	UploadFileCount int64
	DBMetricsReady  bool
	DBWarning       string
	StorageWarnings []string
}

func newStatusCmd(cfg *config.Config) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show application statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status := collectStatus(cmd.Context(), cfg)
			if asJSON {
				return printStatusJSON(cmd.OutOrStdout(), status)
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "print status as JSON")

	return cmd
}

func collectStatus(ctx context.Context, cfg *config.Config) appStatus {
	if ctx == nil {
		ctx = context.Background()
	}

	status := appStatus{
		GeneratedAt:     time.Now(),
		Environment:     cfg.Environment,
		Port:            cfg.Port,
		StoreDriver:     cfg.StoreDriver,
		DatabasePath:    cfg.DatabasePath,
		AssetDriver:     cfg.AssetDriver,
		FileStoragePath: cfg.FileStoragePath,
	}

	if cfg.StoreDriver == config.StoreSQLite {
		if size, err := fileSize(cfg.DatabasePath); err == nil {
			status.DBSize = size
		} else {
			status.StorageWarnings = append(status.StorageWarnings, fmt.Sprintf("database file: %v", err))
		}
		if size, err := fileSize(cfg.DatabasePath + "-wal"); err == nil {
			status.DBWALSize = size
		}
		if size, err := fileSize(cfg.DatabasePath + "-shm"); err == nil {
			status.DBSHMSize = size
		}

		// Opening would create an empty database; report instead.
		if _, err := os.Stat(cfg.DatabasePath); err != nil {
			status.DBWarning = fmt.Sprintf("database unavailable: %v", err)
		}
	}

	if cfg.AssetDriver == config.AssetsLocal {
		if bytes, files, err := dirUsage(cfg.FileStoragePath); err == nil {
			status.UploadDirSize = bytes
			status.UploadFileCount = files
		} else {
			status.StorageWarnings = append(status.StorageWarnings, fmt.Sprintf("upload dir: %v", err))
		}
	}

	if status.DBWarning != "" {
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		status.DBWarning = fmt.Sprintf("database unavailable: %v", err)
		return status
	}
	defer st.Close()

	stats, err := st.Stats(ctx)
	if err != nil {
		status.DBWarning = err.Error()
		return status
	}

	status.Stats = stats
	status.DBMetricsReady = true
	return status
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

func dirUsage(root string) (int64, int64, error) {
	var totalBytes int64
	var totalFiles int64

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		totalBytes += info.Size()
		totalFiles++
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return totalBytes, totalFiles, nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "n/a"
	}
	return t.UTC().Format(time.RFC3339)
}

func printStatus(out io.Writer, status appStatus) {
	totalDB := status.DBSize + status.DBWALSize + status.DBSHMSize

	fmt.Fprintln(out, "Gapchat Status")
	fmt.Fprintf(out, "Generated at: %s\n", status.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Environment : %s\n", status.Environment)
	fmt.Fprintf(out, "Port        : %s\n", status.Port)
	fmt.Fprintf(out, "Store       : %s\n", status.StoreDriver)
	if status.StoreDriver == config.StoreSQLite {
		fmt.Fprintf(out, "Database    : %s\n", status.DatabasePath)
	}
	fmt.Fprintf(out, "Assets      : %s\n", status.AssetDriver)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Data")
	if status.DBMetricsReady {
		fmt.Fprintf(out, "  Users             : %d\n", status.Stats.Users)
		fmt.Fprintf(out, "  Chats             : %d\n", status.Stats.Chats)
		fmt.Fprintf(out, "  Group chats       : %d\n", status.Stats.GroupChats)
		fmt.Fprintf(out, "  Messages          : %d\n", status.Stats.Messages)
		fmt.Fprintf(out, "  Messages last 24h : %d\n", status.Stats.MessagesLast24h)
		fmt.Fprintf(out, "  Latest message at : %s\n", formatTimestamp(status.Stats.LatestMessageAt))
	} else {
		fmt.Fprintln(out, "  Database metrics  : n/a")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Storage")
	if status.StoreDriver == config.StoreSQLite {
		fmt.Fprintf(out, "  DB file       : %s\n", formatBytes(status.DBSize))
		fmt.Fprintf(out, "  DB WAL file   : %s\n", formatBytes(status.DBWALSize))
		fmt.Fprintf(out, "  DB SHM file   : %s\n", formatBytes(status.DBSHMSize))
		fmt.Fprintf(out, "  DB footprint  : %s\n", formatBytes(totalDB))
	}
	if status.AssetDriver == config.AssetsLocal {
		fmt.Fprintf(out, "  Upload files  : %d\n", status.UploadFileCount)
		fmt.Fprintf(out, "  Upload size   : %s\n", formatBytes(status.UploadDirSize))
	}

	if status.DBWarning != "" {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Warning: %s\n", status.DBWarning)
	}

	if len(status.StorageWarnings) > 0 {
		fmt.Fprintln(out)
		for _, warning := range status.StorageWarnings {
			fmt.Fprintf(out, "Warning: %s\n", warning)
		}
	}
}

func printStatusJSON(out io.Writer, status appStatus) error {
	totalDB := status.DBSize + status.DBWALSize + status.DBSHMSize
	payload := map[string]any{
		"generated_at":      status.GeneratedAt.Format(time.RFC3339),
		"environment":       status.Environment,
		"port":              status.Port,
		"store_driver":      status.StoreDriver,
		"database_path":     status.DatabasePath,
		"asset_driver":      status.AssetDriver,
		"file_storage_path": status.FileStoragePath,
		"metrics_ready":     status.DBMetricsReady,
		"metrics": map[string]any{
			"users":             status.Stats.Users,
			"chats":             status.Stats.Chats,
			"group_chats":       status.Stats.GroupChats,
			"messages":          status.Stats.Messages,
			"messages_last_24h": status.Stats.MessagesLast24h,
			"latest_message_at": formatTimestamp(status.Stats.LatestMessageAt),
		},
		"storage": map[string]any{
			"db_file_bytes":      status.DBSize,
			"db_wal_bytes":       status.DBWALSize,
			"db_shm_bytes":       status.DBSHMSize,
			"db_footprint_bytes": totalDB,
			"upload_dir_bytes":   status.UploadDirSize,
			"upload_file_count":  status.UploadFileCount,
			"db_footprint_hum":   formatBytes(totalDB),
			"upload_dir_hum":     formatBytes(status.UploadDirSize),
		},
		"warnings": map[string]any{
			"database": status.DBWarning,
			"storage":  status.StorageWarnings,
		},
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
