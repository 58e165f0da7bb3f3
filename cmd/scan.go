package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"MelodyMind/cache"
	"MelodyMind/core/scanner"
	"MelodyMind/db"
	"MelodyMind/repository"
)

var (
	scanWatch   bool
	scanWorkers int
	scanSettle  time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "导入本地音乐目录",
	Long:  `扫描 MUSIC_DIR 下的音频文件并写入曲库；--watch 持续监听新文件。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.ConnectGormDB(cfg); err != nil {
			return err
		}
		defer db.CloseGormDB()
		if err := db.AutoMigrateModels(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := scanner.New(cfg.MusicDir, repository.NewGormSongRepository(db.GormDB), scanWorkers)
		report, err := s.Scan(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s (added %d, updated %d, failed %d)\n",
			s.Dir(), report.Message, report.Added, report.Updated, report.Failed)
		if report.Added+report.Updated > 0 {
			invalidateRecommendations(ctx)
		}

		if !scanWatch {
			return nil
		}
		fmt.Println("监听新文件中，Ctrl+C 退出...")
		return s.Watch(ctx, scanSettle)
	},
}

// invalidateRecommendations 让服务端缓存的推荐结果失效，Redis 不可用时跳过
func invalidateRecommendations(ctx context.Context) {
	if err := cache.ConnectRedis(cfg); err != nil {
		fmt.Printf("Redis不可用，推荐缓存将在TTL后过期: %v\n", err)
		return
	}
	defer cache.CloseRedis()
	if err := cache.NewRecommendationCache(cache.RedisClient, cfg.RecommendTTL).InvalidateCatalog(ctx); err != nil {
		fmt.Printf("推荐缓存失效失败: %v\n", err)
	}
}

func init() {
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "扫描后持续监听目录")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 4, "并发导入数")
	scanCmd.Flags().DurationVar(&scanSettle, "settle", 500*time.Millisecond, "文件写入静默多久后导入")
	rootCmd.AddCommand(scanCmd)
}
