package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"reel/internal/config"
	"reel/internal/pkg/logger"
	"reel/internal/pkg/workdir"
	mediarepo "reel/internal/repository/media"
)

func main() {
	// 1. 加载配置（与 cmd/root.go 保持一致的搜索路径）
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.reel")

	viper.SetEnvPrefix("REEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("workdir.base", ".")
	viper.SetDefault("database.busy_timeout", 5000)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	// 2. 创建工作目录树
	wd := workdir.New(cfg.Workdir.Base)
	if err := wd.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare workdir")
	}

	// 3. 打开数据库（建表在 Open 中完成）
	dbCfg := cfg.Database
	dbCfg.Path = cfg.DatabasePath()
	db, err := mediarepo.Open(&dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() {
		_ = db.Close()
	}()

	ctx := context.Background()

	// 4. 预置旧数据占位记录（幂等），对账无主 JSON 时会挂到它名下
	images := mediarepo.NewImageRepo(db)
	legacyID, err := images.EnsureLegacyPlaceholder(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to ensure legacy placeholder")
	}
	log.Info().Int64("legacy_image_id", legacyID).Msg("legacy placeholder ready")

	// 5. 汇总当前库里的档案数量
	stats, err := mediarepo.NewStatsRepo(db).Collect(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to collect statistics")
	}

	fmt.Printf("Workdir initialized: base=%s database=%s images=%d prompts=%d videos=%d\n",
		cfg.Workdir.Base, dbCfg.Path, stats.TotalImages, stats.TotalPrompts, stats.TotalVideos)
}
