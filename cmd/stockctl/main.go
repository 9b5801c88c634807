package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/org/stockdesk/internal/client"
	"github.com/org/stockdesk/pkg/models"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "stockctl",
	Short:         "Stockdesk CLI",
	Long:          "A CLI for the stock-media reseller platform: accounts, credits, catalog and downloads.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			level = zerolog.WarnLevel
		}
		zerolog.SetGlobalLevel(level)
		return loadConfig()
	},
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json, raw")
	rootCmd.PersistentFlags().StringVar(&outputField, "field", "", "Print only this field (use with --format=raw)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(loginCmd(), registerCmd(), logoutCmd(), meCmd(), usersCmd())
	rootCmd.AddCommand(creditCmd(), siteCmd(), pricingCmd(), downloadCmd(), configCmd())
}

// prompt reads one line from stdin when a value was not given as a flag.
func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

func flagOrPrompt(cmd *cobra.Command, name, label string) string {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		v = prompt(label)
	}
	return v
}

// --- auth ---

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			email := flagOrPrompt(cmd, "email", "Email: ")
			password := flagOrPrompt(cmd, "password", "Password: ")
			remember, _ := cmd.Flags().GetBool("remember")
			env := newClient().Login(cmd.Context(), email, password, remember)
			if err := envelopeErr(env.Success, env.Error); err != nil {
				return err
			}
			printSuccess("Signed in as " + env.Data.Email + ".")
			return nil
		},
	}
	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("password", "", "Account password (prompted when empty)")
	cmd.Flags().Bool("remember", false, "Keep the session across shells")
	return cmd
}

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			first, _ := cmd.Flags().GetString("first-name")
			last, _ := cmd.Flags().GetString("last-name")
			in := client.RegisterInput{
				Email:     flagOrPrompt(cmd, "email", "Email: "),
				Password:  flagOrPrompt(cmd, "password", "Password: "),
				FirstName: first,
				LastName:  last,
			}
			env := newClient().Register(cmd.Context(), in)
			if err := envelopeErr(env.Success, env.Error); err != nil {
				return err
			}
			printSuccess("Account created for " + env.Data.Email + ".")
			return nil
		},
	}
	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("password", "", "Account password (prompted when empty)")
	cmd.Flags().String("first-name", "", "First name")
	cmd.Flags().String("last-name", "", "Last name")
	cmd.MarkFlagRequired("first-name") //nolint:errcheck
	cmd.MarkFlagRequired("last-name")  //nolint:errcheck
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget it locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := newClient().Logout(cmd.Context())
			if err := envelopeErr(env.Success, env.Error); err != nil {
				log.Warn().Err(err).Msg("backend did not confirm logout")
			}
			printSuccess("Signed out.")
			return nil
		},
	}
}

func meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(newClient().UserData(cmd.Context()))
		},
	}
}

func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List all accounts (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(newClient().ListUsers(cmd.Context()))
		},
	}
}

// --- credit ---

func creditCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "credit", Short: "Manage user credits (admin)"}

	subscribeCmd := &cobra.Command{
		Use:   "subscribe <email> <plan-id>",
		Short: "Set a user's balance from a pricing plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(newClient().SubscribeCredit(cmd.Context(), models.CreditSubscribeRequest{Email: args[0], PlanID: args[1]}))
		},
	}

	upgradeCmd := &cobra.Command{
		Use:   "upgrade <email> <plan-id>",
		Short: "Add a plan's credits to a user's balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(newClient().UpgradeCredit(cmd.Context(), models.CreditUpgradeRequest{Email: args[0], PlanID: args[1]}))
		},
	}

	extendCmd := &cobra.Command{
		Use:   "extend <email> <days>",
		Short: "Extend a user's subscription",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid days %q: %w", args[1], err)
			}
			return report(newClient().ExtendCredit(cmd.Context(), models.CreditExtendRequest{Email: args[0], Days: days}))
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <email>",
		Short: "Zero a user's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(newClient().DeleteCredit(cmd.Context(), models.CreditDeleteRequest{Email: args[0]}))
		},
	}

	analyticsCmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show credit totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(newClient().CreditAnalytics(cmd.Context()))
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show credit history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(newClient().CreditHistory(cmd.Context()))
		},
	}

	cmd.AddCommand(subscribeCmd, upgradeCmd, extendCmd, deleteCmd, analyticsCmd, historyCmd)
	return cmd
}

// --- sites ---

func siteCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "site", Short: "Manage supported stock sites"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(newClient().ListSites(cmd.Context()))
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <name> <url>",
		Short: "Add a site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			disabled, _ := cmd.Flags().GetBool("disabled")
			return report(newClient().AddSite(cmd.Context(), models.SiteAddRequest{Name: args[0], URL: args[1], Enabled: !disabled}))
		},
	}
	addCmd.Flags().Bool("disabled", false, "Add the site disabled")

	editCmd := &cobra.Command{
		Use:   "edit <id> <name> <url>",
		Short: "Edit a site",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			disabled, _ := cmd.Flags().GetBool("disabled")
			return report(newClient().EditSite(cmd.Context(), models.SiteEditRequest{ID: args[0], Name: args[1], URL: args[2], Enabled: !disabled}))
		},
	}
	editCmd.Flags().Bool("disabled", false, "Disable the site")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(newClient().DeleteSite(cmd.Context(), args[0]))
		},
	}

	cmd.AddCommand(listCmd, addCmd, editCmd, deleteCmd)
	return cmd
}

// --- pricing ---

func pricingFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Plan name")
	cmd.Flags().Int("credits", 0, "Credits granted")
	cmd.Flags().Float64("price", 0, "Price")
	cmd.Flags().Int("days", 30, "Validity in days")
	cmd.Flags().String("description", "", "Description")
	cmd.MarkFlagRequired("name")    //nolint:errcheck
	cmd.MarkFlagRequired("credits") //nolint:errcheck
}

func pricingCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "pricing", Short: "Manage pricing plans"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List pricing plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(newClient().ListPricing(cmd.Context()))
		},
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a pricing plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			name, _ := f.GetString("name")
			credits, _ := f.GetInt("credits")
			price, _ := f.GetFloat64("price")
			days, _ := f.GetInt("days")
			desc, _ := f.GetString("description")
			return report(newClient().AddPricing(cmd.Context(), models.PricingAddRequest{
				Name: name, Credits: credits, Price: price, ValidityDays: days, Description: desc,
			}))
		},
	}
	pricingFlags(addCmd)

	editCmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a pricing plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			name, _ := f.GetString("name")
			credits, _ := f.GetInt("credits")
			price, _ := f.GetFloat64("price")
			days, _ := f.GetInt("days")
			desc, _ := f.GetString("description")
			return report(newClient().EditPricing(cmd.Context(), models.PricingEditRequest{
				ID: args[0], Name: name, Credits: credits, Price: price, ValidityDays: days, Description: desc,
			}))
		},
	}
	pricingFlags(editCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a pricing plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(newClient().DeletePricing(cmd.Context(), args[0]))
		},
	}

	cmd.AddCommand(listCmd, addCmd, editCmd, deleteCmd)
	return cmd
}

// --- downloads ---

func waitFor(ctx context.Context, c *client.Client, id string, interval time.Duration) error {
	env := c.PollTask(ctx, id, interval, func(t models.DownloadTask) {
		log.Info().Str("task_id", t.ID).Str("status", string(t.Status)).Int("progress", t.Progress).Msg("task update")
	})
	if err := report(env); err != nil {
		return err
	}
	if env.Data.Status == models.TaskFailed {
		return fmt.Errorf("download failed: %s", env.Data.ErrorMessage)
	}
	return nil
}

func downloadCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "download", Short: "Queue and track downloads"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List your download tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(newClient().ListTasks(cmd.Context()))
		},
	}

	createCmd := &cobra.Command{
		Use:   "create <url>",
		Short: "Queue a download (costs one credit)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			env := c.CreateTask(cmd.Context(), args[0])
			if err := report(env); err != nil {
				return err
			}
			if wait, _ := cmd.Flags().GetBool("wait"); wait {
				interval, _ := cmd.Flags().GetDuration("interval")
				return waitFor(cmd.Context(), c, env.Data.TaskID, interval)
			}
			return nil
		},
	}
	createCmd.Flags().Bool("wait", false, "Wait until the task settles")
	createCmd.Flags().Duration("interval", 2*time.Second, "Polling interval with --wait")

	retryCmd := &cobra.Command{
		Use:   "retry <task-id>",
		Short: "Retry a failed download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(newClient().RetryTask(cmd.Context(), args[0]))
		},
	}

	waitCmd := &cobra.Command{
		Use:   "wait <task-id>",
		Short: "Wait for a download to complete or fail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")
			return waitFor(cmd.Context(), newClient(), args[0], interval)
		},
	}
	waitCmd.Flags().Duration("interval", 2*time.Second, "Polling interval")

	cmd.AddCommand(listCmd, createCmd, retryCmd, waitCmd)
	return cmd
}

// --- config ---

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Show or change CLI settings"}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(map[string]any{
				"address":     cfg.Address,
				"timeout":     cfg.Timeout.String(),
				"tls_ca_cert": cfg.TLSCACert,
				"config_file": configPath(),
			})
		},
	}

	setAddrCmd := &cobra.Command{
		Use:   "set-address <url>",
		Short: "Set the backend address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Address = args[0]
			if err := saveConfig(); err != nil {
				return err
			}
			printSuccess("Saved to " + configPath() + ".")
			return nil
		},
	}

	cmd.AddCommand(showCmd, setAddrCmd)
	return cmd
}
