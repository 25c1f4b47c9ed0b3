package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/markjakearzadon/paygate-gobackend/internal/config"
	"github.com/markjakearzadon/paygate-gobackend/internal/db"
	"github.com/markjakearzadon/paygate-gobackend/internal/services"
	"github.com/markjakearzadon/paygate-gobackend/internal/store"
)

func createAdminCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a back-office admin in MongoDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.MongoURI == "" {
				return fmt.Errorf("MONGOURI is not set")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			client, err := db.Connect(ctx, cfg.MongoURI)
			if err != nil {
				return err
			}
			defer db.Disconnect(client)

			st := store.NewMongoStore(client.Database(cfg.MongoDB))
			if err := st.EnsureIndexes(ctx); err != nil {
				return err
			}
			user, err := services.NewUserService(st, cfg.JWTSecret).CreateAdmin(ctx, name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Email, user.ID.Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Admin", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "password, at least 8 characters")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
