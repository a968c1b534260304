package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/synobridge/synobridge/internal/config"
	"github.com/synobridge/synobridge/internal/synology"
)

var checkLogin bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration",
	Long: `Validate the bridge configuration from the environment. With --login,
also attempt a DSM login and immediate logout to verify credentials.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkLogin, "login", false, "Attempt a DSM login to verify credentials")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	if problems := cfg.Validate(); len(problems) > 0 {
		for _, p := range problems {
			fmt.Printf("FAIL  %s\n", p)
		}
		return fmt.Errorf("%d configuration problem(s)", len(problems))
	}
	fmt.Println("OK    configuration valid")
	fmt.Printf("      %s\n", cfg)

	if !checkLogin {
		return nil
	}
	if !cfg.HasSynologyCredentials() {
		return fmt.Errorf("--login requires SYNOLOGY_URL, SYNOLOGY_USERNAME and SYNOLOGY_PASSWORD")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := synology.NewClient(cfg.SynologyURL, cfg.VerifySSL)
	auth := synology.NewAuth(client)

	sid, err := auth.Login(ctx, cfg.SynologyUsername, cfg.SynologyPassword)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Printf("OK    login succeeded (session %s...)\n", sid[:min(8, len(sid))])

	if err := auth.Logout(ctx, sid); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	fmt.Println("OK    logout succeeded")
	return nil
}
