package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carebook/carebook/internal/config"
	"github.com/carebook/carebook/internal/domain/account"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/db"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user and its role profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			first, _ := cmd.Flags().GetString("first-name")
			last, _ := cmd.Flags().GetString("last-name")
			phone, _ := cmd.Flags().GetString("phone")
			role, _ := cmd.Flags().GetString("role")
			staff, _ := cmd.Flags().GetBool("staff")

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			svc := account.NewService(account.NewRepoPG(pool), db.NewTxRunner(pool), zerolog.Nop())
			acct, err := svc.Register(ctx, account.NewUser{
				Email:     email,
				FirstName: first,
				LastName:  last,
				Phone:     phone,
				Role:      auth.Role(role),
				Staff:     staff,
			})
			if err != nil {
				return err
			}

			fmt.Printf("User created successfully.\n")
			fmt.Printf("  ID:    %s\n", acct.ID)
			fmt.Printf("  Email: %s\n", acct.Email)
			fmt.Printf("  Role:  %s\n", acct.Role)
			return nil
		},
	}
	createCmd.Flags().String("email", "", "Email address (required)")
	createCmd.Flags().String("first-name", "", "First name")
	createCmd.Flags().String("last-name", "", "Last name")
	createCmd.Flags().String("phone", "", "Phone number, e.g. +919876543210")
	createCmd.Flags().String("role", string(auth.RolePatient), "Role: admin, doctor or patient")
	createCmd.Flags().Bool("staff", false, "Mark the account as staff")
	_ = createCmd.MarkFlagRequired("email")

	cmd.AddCommand(createCmd)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for development and testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			userStr, _ := cmd.Flags().GetString("user")
			roleStr, _ := cmd.Flags().GetString("role")
			staff, _ := cmd.Flags().GetBool("staff")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			uid, err := uuid.Parse(userStr)
			if err != nil {
				return fmt.Errorf("--user must be a UUID: %w", err)
			}
			role, err := auth.ParseRole(roleStr)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.AuthSigningKey == "" {
				return fmt.Errorf("AUTH_SIGNING_KEY is not set")
			}

			token, err := auth.IssueToken(jwtConfig(cfg), auth.Actor{UserID: uid, Role: role, Staff: staff}, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("user", "", "User ID the token is issued for (required)")
	cmd.Flags().String("role", string(auth.RolePatient), "Role claim: admin, doctor or patient")
	cmd.Flags().Bool("staff", false, "Set the staff claim")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
