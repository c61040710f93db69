// Package cli 实现 starkpi 命令行：启动看板服务、离线出报表、生成样例工作簿与默认配置
package cli

import (
	"github.com/spf13/cobra"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/config"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/logging"
)

// Version 构建时通过 -ldflags 注入
var Version = "dev"

var (
	cfgFile  string
	logLevel string

	cfg     *config.AppConfig
	cfgInfo config.LoadConfigInfo

	rootCmd = &cobra.Command{
		Use:   "starkpi",
		Short: "Star Cement KPI dashboard backend",
		Long: `starkpi ingests the Star Cement operations workbook into a local
warehouse and serves role-based KPIs and AI insights over HTTP.

It can also compute the same KPIs offline from a workbook and print them
as tables, or generate a synthetic workbook for demos.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute 执行根命令
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: config.toml next to the executable)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() error {
	var err error
	cfg, cfgInfo, err = config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})

	return cfg.Validate()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("starkpi " + Version)
	},
}
