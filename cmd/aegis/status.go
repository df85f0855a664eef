package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/aegisops/aegis/internal/api"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print stats from a running aegis instance over gRPC",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("dial %s: %w", addr, err)
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		stats, err := api.NewControlLoopClient(conn).GetStats(ctx)
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		out := cmd.OutOrStdout()
		for _, section := range []string{"decision_engine", "auto_healer", "anomaly_detector", "monitor"} {
			fields := stats.Fields[section].GetStructValue()
			if fields == nil {
				continue
			}
			fmt.Fprintf(out, "%s\n", cyan(section))
			values := fields.AsMap()
			keys := make([]string, 0, len(values))
			for key := range values {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(out, "  %-20s %v\n", key+":", values[key])
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("addr", "localhost:50061", "gRPC address of the aegis instance")
	statusCmd.Flags().Duration("timeout", 5*time.Second, "request timeout")
	rootCmd.AddCommand(statusCmd)
}
