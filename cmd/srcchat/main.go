package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eben2468/srcwebsite-sub012/internal/application"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/valueobject"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/config"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/logger"
	"github.com/eben2468/srcwebsite-sub012/internal/interfaces/cli"
)

const (
	cliName     = "srcchat"
	renderWidth = 100
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          cliName,
		Short:        "SRC live chat helpdesk",
		Long:         "SRC 在线客服服务: 会话分配、消息、在线状态与推送",
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径 (默认 ~/.srcchat/config.yaml)")

	// --- Subcommands ---

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP / WebSocket 服务",
		RunE:  runServe,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "创建或升级数据库表结构",
		RunE:  runMigrate,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "agents",
		Short: "列出客服在线状态",
		RunE:  runAgents,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "quick-responses [category]",
		Short: "预览快捷回复",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runQuickResponses,
	})

	userCmd := &cobra.Command{Use: "user", Short: "本地账号管理"}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "创建账号",
		RunE:  runUserCreate,
	}
	createCmd.Flags().String("name", "", "显示名")
	createCmd.Flags().String("email", "", "登录邮箱")
	createCmd.Flags().String("password", "", "密码")
	createCmd.Flags().String("role", "student", "角色: student | member | staff | admin")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")
	userCmd.AddCommand(createCmd)
	rootCmd.AddCommand(userCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "token <user-id>",
		Short: "为已有账号签发测试令牌",
		Args:  cobra.ExactArgs(1),
		RunE:  runToken,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "显示版本",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", cliName, cli.AppVersion)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "环境诊断",
		RunE:  runDoctor,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.LoadFrom(configPath)
}

// ─── Server Mode ───

func runServe(cmd *cobra.Command, args []string) error {
	// 首次运行时生成 ~/.srcchat 下的默认文件, 之后再读取配置
	boot, _ := logger.NewLogger(logger.Config{Level: "warn", Format: "console", OutputPath: "stderr"})
	if boot != nil {
		_ = config.Bootstrap(boot)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	log.Info("Starting SRC chat", zap.String("version", cli.AppVersion))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := application.NewApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize application", zap.Error(err))
		return err
	}

	redis, kafka, telegram := app.Features()
	fmt.Fprintln(os.Stderr, cli.RenderBanner(cli.BannerInfo{
		Address:  cfg.Server.Addr(),
		Database: cfg.Database.Type,
		Redis:    redis,
		Kafka:    kafka,
		Telegram: telegram,
	}, renderWidth))

	if err := app.Start(ctx); err != nil {
		log.Error("Failed to start application", zap.Error(err))
		return err
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
		return err
	}
	return nil
}

// ─── Admin Commands ───

// openCLI builds a database-only app with a quiet logger.
func openCLI() (*application.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(logger.Config{Level: "error", Format: "console", OutputPath: "stderr"})
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	return application.NewAppCLI(cfg, log)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	app, err := openCLI()
	if err != nil {
		return err
	}
	defer app.Stop(cmd.Context())

	fmt.Printf("schema up to date (%s)\n", app.AppConfig().Database.Type)
	return nil
}

func runAgents(cmd *cobra.Command, args []string) error {
	app, err := openCLI()
	if err != nil {
		return err
	}
	defer app.Stop(cmd.Context())

	operator := valueobject.NewPrincipal(0, cliName, valueobject.RoleAdmin)
	agents, err := app.Chat().ListAgents(cmd.Context(), operator)
	if err != nil {
		return err
	}
	fmt.Println(cli.NewRenderer(renderWidth).AgentsTable(agents))
	return nil
}

func runQuickResponses(cmd *cobra.Command, args []string) error {
	app, err := openCLI()
	if err != nil {
		return err
	}
	defer app.Stop(cmd.Context())

	category := ""
	if len(args) == 1 {
		category = args[0]
	}
	operator := valueobject.NewPrincipal(0, cliName, valueobject.RoleAdmin)
	items, err := app.Chat().GetQuickResponses(cmd.Context(), operator, category)
	if err != nil {
		return err
	}
	fmt.Println(cli.NewRenderer(renderWidth).QuickResponses(items))
	return nil
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	app, err := openCLI()
	if err != nil {
		return err
	}
	defer app.Stop(cmd.Context())

	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	role, _ := cmd.Flags().GetString("role")

	u, err := app.Accounts().CreateUser(cmd.Context(), name, email, password, role)
	if err != nil {
		return err
	}
	fmt.Printf("created user %d (%s, %s)\n", u.ID, u.Email, u.Role)
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid user id %q", args[0])
	}
	app, err := openCLI()
	if err != nil {
		return err
	}
	defer app.Stop(cmd.Context())

	token, exp, err := app.Accounts().IssueToken(cmd.Context(), uint(id))
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
	return nil
}

// ─── Doctor ───

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Printf("◇ srcchat doctor v%s\n\n", cli.AppVersion)

	cfg, cfgErr := loadConfig()
	checks := []struct {
		name  string
		check func() (string, bool)
	}{
		{"配置文件", func() (string, bool) {
			if cfgErr != nil {
				return cfgErr.Error(), false
			}
			return "ok", true
		}},
		{"数据库", func() (string, bool) {
			if cfgErr != nil {
				return "跳过", false
			}
			app, err := openCLI()
			if err != nil {
				return err.Error(), false
			}
			defer app.Stop(cmd.Context())
			return cfg.Database.Type, true
		}},
		{"上传目录", func() (string, bool) {
			if cfgErr != nil {
				return "跳过", false
			}
			if err := os.MkdirAll(cfg.Uploads.Dir, 0755); err != nil {
				return err.Error(), false
			}
			return cfg.Uploads.Dir, true
		}},
	}

	allOK := true
	for _, c := range checks {
		val, ok := c.check()
		icon := "\033[92m✓\033[0m"
		if !ok {
			icon = "\033[91m✗\033[0m"
			allOK = false
		}
		fmt.Printf("  %s %s: %s\n", icon, c.name, val)
	}

	fmt.Println()
	if allOK {
		fmt.Println("所有检查通过 ✓")
	} else {
		fmt.Println("存在问题, 请检查上方标记")
	}
	return nil
}
