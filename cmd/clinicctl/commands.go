package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"clinic/internal/database"
	"clinic/internal/models"
	"clinic/internal/report"
	"clinic/internal/service"

	"github.com/spf13/cobra"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserCreateCmd(a))
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			users, err := db.GetUsers(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
			for _, u := range users {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
			}
			return tw.Flush()
		},
	})
	return cmd
}

func newProviderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage providers",
	}
	for _, active := range []bool{true, false} {
		use := "deactivate"
		if active {
			use = "activate"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   use + " <provider-id>",
			Short: "Mark a provider as " + use + "d",
			Args:  cobra.ExactArgs(1),
			RunE:  setProviderActive(a, active),
		})
	}
	return cmd
}

func setProviderActive(a *app, active bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid provider id %q", args[0])
		}
		db, err := a.openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.SetProviderActive(cmd.Context(), id, active); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "provider %d active=%t\n", id, active)
		return nil
	}
}

func newUserCreateCmd(a *app) *cobra.Command {
	var name, email, password, role string

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a user, e.g. the first admin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			auth := service.NewAuthService(db, db, nil, a.cfg.Auth.TokenTTL, a.cfg.Auth.BcryptCost, a.logger)
			user, err := auth.CreateUser(cmd.Context(), name, email, password, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %q (id %d)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}

	c.Flags().StringVar(&name, "name", "", "display name")
	c.Flags().StringVar(&email, "email", "", "login email")
	c.Flags().StringVar(&password, "password", "", "password (at least 8 characters)")
	c.Flags().StringVar(&role, "role", models.RoleCustomer, "admin, provider or customer")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")
	return c
}

func newBackupCmd(a *app) *cobra.Command {
	var dir string

	c := &cobra.Command{
		Use:   "backup",
		Short: "Take a one-off database backup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			cfg := a.cfg.Backup
			if dir != "" {
				cfg.StoragePath = dir
			}
			if cfg.StoragePath == "" {
				return fmt.Errorf("backup directory is not configured; pass --dir")
			}

			backups := database.NewBackupService(db, cfg, a.logger)
			path, err := backups.PerformBackup(cmd.Context())
			if err != nil {
				return err
			}
			removed := backups.CleanupOldBackups()
			fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s (%d old removed)\n", path, removed)
			return nil
		},
	}
	c.Flags().StringVar(&dir, "dir", "", "backup directory (defaults to backup.storage_path)")
	return c
}

func newAppointmentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "Inspect appointments",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all appointments ordered by date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := db.GetReportRows(cmd.Context())
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), rows)
		},
	})
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var dir string

	c := &cobra.Command{
		Use:   "report",
		Short: "Export the daily report as xlsx",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := db.GetReportRows(cmd.Context())
			if err != nil {
				return err
			}
			path, err := report.Save(dir, rows, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", path)
			return nil
		},
	}
	c.Flags().StringVar(&dir, "dir", "exports", "output directory")
	return c
}

func printReport(w io.Writer, rows []*models.ReportRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTIME\tPROVIDER\tSERVICE\tCUSTOMER\tSTATUS")
	for _, r := range rows {
		customer := r.CustomerName
		if customer == "" {
			customer = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%s\t%s\t%s\t%s\n",
			strconv.FormatInt(r.AppointmentID, 10), r.AppointmentDate, r.StartTime, r.EndTime,
			r.ProviderName, r.ServiceName, customer, r.Status)
	}
	return tw.Flush()
}
