package cmd

import (
	"github.com/spf13/cobra"

	"MelodyMind/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动MelodyMind服务器",
	Long:  `启动MelodyMind的HTTP服务器，提供情绪检测、推荐和歌单API`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
