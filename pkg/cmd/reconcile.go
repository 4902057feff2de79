package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/dataviz/pkg/api"
	"github.com/yeisme/dataviz/pkg/configs"
	"github.com/yeisme/dataviz/pkg/internal/storage"
)

// reconcileCmd 单次执行 pending 上传对账，用于服务未运行时的手工修复.
var reconcileCmd = &cobra.Command{
	Use:     "reconcile",
	Short:   "mark stale pending uploads as complete or failed",
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.GetConfig()

		mgr, err := storage.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer mgr.Close()

		report, err := api.NewServices(mgr, cfg).Reconcile.Run(cmd.Context())
		if err != nil {
			return err
		}

		b, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(b))

		return nil
	},
}

func registerReconcileCommands() {
	rootCmd.AddCommand(reconcileCmd)
}
