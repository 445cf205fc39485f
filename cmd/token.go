package cmd

import (
	"errors"
	"fmt"
	"time"

	"budget/config"
	"budget/middleware"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "为指定用户签发访问令牌",
	Long: `使用当前配置中的 JWT 密钥为指定用户签发访问令牌，便于运维排查与接口调试。
不会访问数据库，也不会校验用户是否存在。`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Uint("user", 0, "用户ID")
}

func runToken(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetUint("user")
	if userID == 0 {
		return errors.New("请通过 --user 指定用户ID")
	}

	_ = godotenv.Load()
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}

	token, expiresAt, err := issueToken(cfg, userID)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "过期时间: %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

func issueToken(cfg *config.Config, userID uint) (string, time.Time, error) {
	tokens, err := middleware.NewTokenService(cfg.JWT)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokens.Issue(userID)
}
