package cmd

import (
	"MeloFM/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动MeloFM服务器",
	Long:  `启动MeloFM音乐库的HTTP服务器，提供解析入库与播放API`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
