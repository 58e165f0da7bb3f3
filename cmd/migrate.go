package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"MelodyMind/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "同步数据库表结构",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.ConnectGormDB(cfg); err != nil {
			return err
		}
		defer db.CloseGormDB()
		if err := db.AutoMigrateModels(); err != nil {
			return err
		}
		fmt.Printf("migrated %d tables in %s\n", len(db.Models()), cfg.DBName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
