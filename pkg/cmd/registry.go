package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/dataviz/pkg/internal/storage/filestore"
	kv "github.com/yeisme/dataviz/pkg/internal/storage/kv"
	mq "github.com/yeisme/dataviz/pkg/internal/storage/mq"
)

var (
	kvCmd = &cobra.Command{
		Use:     "kv",
		Short:   "Key-Value store related commands",
		Aliases: []string{"keyvalue"},
	}

	kvListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered kv types",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered kv types:")
			for _, t := range kv.GetRegisteredKVTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}

	mqCmd = &cobra.Command{
		Use:     "mq",
		Short:   "Message queue related commands",
		Aliases: []string{"messagequeue"},
	}

	mqListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered mq types",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered mq types:")
			for _, t := range mq.GetRegisteredTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}

	filestoreCmd = &cobra.Command{
		Use:     "filestore",
		Short:   "Raw file store related commands",
		Aliases: []string{"fs"},
	}

	filestoreListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered file store backends",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered file store types:")
			for _, t := range filestore.GetRegisteredTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+t)
			}
		},
	}
)

// registerBackendCommands 注册 KV、MQ 与文件存储的后端列表命令.
func registerBackendCommands() {
	rootCmd.AddCommand(kvCmd, mqCmd, filestoreCmd)

	kvCmd.AddCommand(kvListCmd)
	mqCmd.AddCommand(mqListCmd)
	filestoreCmd.AddCommand(filestoreListCmd)
}
