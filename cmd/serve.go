package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"carlos-assist/internal/api"
	"carlos-assist/internal/config"
	"carlos-assist/internal/kb"
	"carlos-assist/internal/logger"
	"carlos-assist/internal/metrics"
	"carlos-assist/internal/models"
	"carlos-assist/internal/service"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "配置文件路径 为空时使用内置默认配置")
	return cmd
}

func runServe(parent context.Context, configPath string) error {
	cfg, err := loadAndValidateConfig(configPath)
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg); err != nil {
		return err
	}
	defer logger.Close()
	logConfig(configPath, cfg)

	catalog, err := kb.LoadFile(cfg.CatalogFile)
	if err != nil {
		logger.Error("加载知识库目录失败: %v", err)
		return err
	}

	assist, err := service.NewAssistService(cfg, catalog, service.Options{Metrics: metrics.Global()})
	if err != nil {
		logger.Error("创建问答服务失败: %v", err)
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	assist.Start(ctx)
	apiServer := api.NewServer(cfg, assist, metrics.Global())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(apiServer.Serve)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("收到退出信号，正在关闭服务...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("关闭 API 服务失败: %v", err)
		}
		return nil
	})
	waitErr := g.Wait()

	if err := assist.Stop(); err != nil {
		logger.Error("停止问答服务失败: %v", err)
		waitErr = errors.Join(waitErr, err)
	}
	logger.Info("程序已退出")
	return waitErr
}

func loadAndValidateConfig(configPath string) (*models.Config, error) {
	var (
		cfg *models.Config
		err error
	)
	if strings.TrimSpace(configPath) == "" {
		cfg = config.Default()
	} else {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	return cfg, nil
}

func logConfig(configPath string, cfg *models.Config) {
	if configPath == "" {
		logger.Info("未指定配置文件，使用默认配置")
	} else {
		logger.Info("配置加载成功: %s", configPath)
	}
	logger.Info("API 监听地址: %s", cfg.APIBind)
	if cfg.CatalogFile == "" {
		logger.Info("知识库目录: 内置默认目录")
	} else {
		logger.Info("知识库目录: %s", cfg.CatalogFile)
	}
	logger.Info("思考延迟: %s", cfg.ThinkingDelay)
	logger.Info("会话空闲回收: %s", cfg.SessionIdleTTL)
	logger.Info("步骤标题模式: %s", cfg.StepLabels)
	if cfg.SubmitRate() == 0 {
		logger.Info("提交限流: 关闭")
	} else {
		logger.Info("提交限流: %.2f/s 突发 %d", cfg.SubmitRate(), cfg.SubmitBurst)
	}
	logger.Info("工单归档: %v 数据目录: %s", cfg.ArchiveEnabled(), cfg.DataDir)
	logger.Info("日志级别: %s", cfg.LogLevel)
	if cfg.LogFile != "" {
		logger.Info("日志文件: %s", cfg.LogFile)
	}
}
