package app

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hitoshi/harmony/internal/config"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーとプレゼンスウォッチャーを同一プロセスで起動する。
	CommandServe Command = "serve"
	// CommandWorker はプレゼンスウォッチャーのみを起動し、結果をHTTPでサーバーへ送る。
	CommandWorker Command = "worker"
	// CommandHealthcheck はヘルスチェックを実行する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// NewRootCommand はharmonyのルートコマンドを生成する。
// サブコマンド省略時はserveとして動作する。
func NewRootCommand(w io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "harmony",
		Short:         "Spotify and Discord status dashboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigFile, "path to the config file (json, toml or yaml)")

	serve := &cobra.Command{
		Use:   string(CommandServe),
		Short: "Run the status API with an in-process presence watcher",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithConfig(cmd, w, configPath, CommandServe)
		},
	}

	worker := &cobra.Command{
		Use:   string(CommandWorker),
		Short: "Run only the presence watcher and publish snapshots to a serve instance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithConfig(cmd, w, configPath, CommandWorker)
		},
	}

	healthcheck := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Probe the local /health endpoint",
		// 軽量サブコマンドのため、設定ファイルは読み込まない
		RunE: func(_ *cobra.Command, _ []string) error {
			port := os.Getenv("HARMONY_SERVER_PORT")
			if port == "" {
				port = "8080"
			}
			return runHealthcheck("http://localhost:" + port + "/health")
		},
	}

	root.RunE = serve.RunE
	root.AddCommand(serve, worker, healthcheck)
	return root
}
