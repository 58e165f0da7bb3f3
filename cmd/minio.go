package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"MelodyMind/storage"
)

var minioPrefix string

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶检查",
	Long:  `确保歌曲存储桶存在，并打印指定前缀下的对象统计。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewSongStore(cfg)
		if err != nil {
			log.Fatalf("创建MinIO客户端失败: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		fmt.Println("MinIO连接成功！")

		stats, err := store.Stats(ctx, minioPrefix)
		if err != nil {
			log.Fatalf("获取存储桶统计信息失败: %v", err)
		}
		fmt.Printf("%s (前缀: %q): %s\n", store.Bucket(), minioPrefix, stats)
	},
}

func init() {
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "songs/", "对象前缀")
	rootCmd.AddCommand(minioCmd)
}
