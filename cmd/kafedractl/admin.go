package main

import (
	"errors"
	"fmt"

	"github.com/BradenHooton/kafedra/internal/config"
	"github.com/BradenHooton/kafedra/internal/database"
	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/internal/repositories"
	"github.com/BradenHooton/kafedra/internal/security"
	"github.com/BradenHooton/kafedra/internal/services"
	"github.com/BradenHooton/kafedra/internal/validation"
	pkgauth "github.com/BradenHooton/kafedra/pkg/auth"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrator account commands",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator account",
	Long: `Create an ADMIN account. The input passes the same validation as
self-registration; only the role differs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input := validation.RegisterInput{}
		input.Email, _ = cmd.Flags().GetString("email")
		input.Password, _ = cmd.Flags().GetString("password")
		input.FirstName, _ = cmd.Flags().GetString("first-name")
		input.LastName, _ = cmd.Flags().GetString("last-name")
		cost, _ := cmd.Flags().GetInt("bcrypt-cost")

		if err := validation.Validate(&input); err != nil {
			return err
		}

		cfg, err := config.LoadDatabase()
		if err != nil {
			return err
		}
		db, err := database.NewConnection(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		events := security.NewEventLogger(logger, 0)
		registration := services.NewRegistrationService(
			repositories.NewUserRepository(db),
			pkgauth.NewHasher(cost),
			events,
			logger,
		)

		user, err := registration.Register(cmd.Context(), services.RegisterRequest{
			Email:     input.Email,
			Password:  input.Password,
			FirstName: input.FirstName,
			LastName:  input.LastName,
			Role:      models.RoleAdmin,
		}, services.RequestMeta{IP: "cli"})
		if err != nil {
			if errors.Is(err, models.ErrConflict) {
				return fmt.Errorf("an account with email %s already exists", input.Email)
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Email, user.ID)
		return nil
	},
}

func init() {
	f := adminCreateCmd.Flags()
	f.String("email", "", "admin email address")
	f.String("password", "", "admin password")
	f.String("first-name", "", "first name")
	f.String("last-name", "", "last name")
	f.Int("bcrypt-cost", 12, "bcrypt cost factor")
	for _, name := range []string{"email", "password", "first-name", "last-name"} {
		_ = adminCreateCmd.MarkFlagRequired(name)
	}

	adminCmd.AddCommand(adminCreateCmd)
}
