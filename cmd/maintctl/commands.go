package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/catalog"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// app carries state shared by every command.
type app struct {
	open openFunc
	cfg  config.Config
	log  *logrus.Logger
}

func newRootCommand(open openFunc) *cobra.Command {
	a := &app{open: open}
	var envFile string

	cmd := &cobra.Command{
		Use:           "maintctl",
		Short:         "Administer the fleet maintenance service",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if envFile != "" {
				a.cfg = config.Load(envFile)
			} else {
				a.cfg = config.Load()
			}
			a.log = a.cfg.NewLogger()
			a.log.SetOutput(cmd.ErrOrStderr())
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")

	cmd.AddCommand(
		a.seedCommand(),
		a.sweepCommand(),
		a.generateCommand(),
		a.evaluateCommand(),
		a.userAddCommand(),
	)
	return cmd
}

// withBackend opens the backend for the duration of fn.
func (a *app) withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, release, err := a.open(ctx, a.cfg, a.log)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, b)
}

func (a *app) seedCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the service catalog into the database",
		Long: `Upsert every service definition and schedule rule from the YAML catalog.
Definitions are keyed by name and rules by key, so seeding twice is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = a.cfg.RuleCatalog
			}
			c, err := catalog.Load(path)
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b *backend) error {
				res, err := catalog.Seed(ctx, b.Catalog, c, a.log)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d services and %d rules from %s\n", res.Services, res.Rules, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&path, "catalog", "", "catalog file (default $RULE_CATALOG)")
	return cmd
}

func (a *app) sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Re-evaluate the schedule of every vehicle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd, func(ctx context.Context, b *backend) error {
				if err := b.Engine.UpdateAllVehicleStatuses(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Sweep completed")
				return nil
			})
		},
	}
}

func (a *app) generateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <vehicle-id>",
		Short: "Generate or refresh a vehicle's schedule from the current rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd, func(ctx context.Context, b *backend) error {
				if err := b.Engine.GenerateScheduleForVehicle(ctx, args[0]); err != nil {
					return err
				}
				return printSchedule(ctx, cmd, b, args[0])
			})
		},
	}
}

func (a *app) evaluateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <vehicle-id>",
		Short: "Re-evaluate one vehicle and print its schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd, func(ctx context.Context, b *backend) error {
				if err := b.Engine.UpdateVehicleStatuses(ctx, args[0]); err != nil {
					return err
				}
				return printSchedule(ctx, cmd, b, args[0])
			})
		},
	}
}

func printSchedule(ctx context.Context, cmd *cobra.Command, b *backend, vehicleID string) error {
	vehicle, err := b.Vehicles.FindVehicle(ctx, vehicleID)
	if err != nil {
		return err
	}
	entries, err := b.Schedules.ListScheduleEntries(ctx, vehicleID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s at %d mi\n", vehicle.DisplayName(), vehicle.CurrentMileage)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTRY\tSERVICE\tNEXT MILEAGE\tNEXT DATE\tSTATUS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ID.Hex(), e.ServiceDefinitionID, formatMileage(e.NextDueMileage), formatDate(e.NextDueDate), e.Status)
	}
	return tw.Flush()
}

func formatMileage(m *int) string {
	if m == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *m)
}

func formatDate(d *time.Time) string {
	if d == nil {
		return "-"
	}
	return d.Format("2006-01-02")
}

func (a *app) userAddCommand() *cobra.Command {
	var username, email, password, role string
	cmd := &cobra.Command{
		Use:   "user-add",
		Short: "Create a user account of any role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := newUser(username, email, password, models.Role(strings.ToLower(role)))
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b *backend) error {
				if err := b.Users.InsertUser(ctx, user); err != nil {
					return fmt.Errorf("create user %q: %w", username, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (%s)\n", user.Role, user.Username, user.ID.Hex())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", string(models.RoleManager), "owner, manager or admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUser(username, email, password string, role models.Role) (models.User, error) {
	if err := auth.ValidateRegistration(username, email, password); err != nil {
		return models.User{}, err
	}
	if !models.IsValidRole(role) {
		return models.User{}, errors.New("invalid role")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	now := time.Now()
	return models.User{
		ID:                primitive.NewObjectID(),
		Username:          username,
		Email:             email,
		PasswordHash:      hash,
		Role:              role,
		IsActive:          true,
		ReminderLeadMiles: models.DefaultReminderLeadMiles,
		ReminderLeadDays:  models.DefaultReminderLeadDays,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
