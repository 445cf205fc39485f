package cmd

import (
	"github.com/spf13/cobra"
)

// Version 版本号，构建时可通过 -ldflags "-X budget/cmd.Version=..." 覆盖
var Version = "1.0.0"

var configFile string

var rootCmd = &cobra.Command{
	Use:   "budgetd",
	Short: "预算助手 - 共享预算记账服务",
	Long: `预算助手提供用户、预算、预算共享与消费记录的 HTTP API。
预算的访问权限完全由用户与预算的关联决定，令牌使用 JWT。`,
	SilenceUsage: true,
}

// Execute 执行根命令，由 main.main 调用
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "外部配置文件路径（可选）")
}
