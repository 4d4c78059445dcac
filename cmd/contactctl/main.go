package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xavierca1/dataverse-contacts/internal/config"
	"github.com/xavierca1/dataverse-contacts/internal/infra/integration/dataverse"
	"github.com/xavierca1/dataverse-contacts/internal/usecase"
	"github.com/xavierca1/dataverse-contacts/pkg/logger"
)

var (
	firstName string
	lastName  string
	email     string
	timeout   time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "contactctl",
		Short:        "Manage Dataverse contacts from the command line",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for the whole command")

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a contact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, uc *usecase.ContactUseCase) (any, error) {
				return uc.Create(ctx, input(cmd))
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the first contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, uc *usecase.ContactUseCase) (any, error) {
				return uc.List(ctx)
			})
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid contact id %q: %w", args[0], err)
			}
			return run(func(ctx context.Context, uc *usecase.ContactUseCase) (any, error) {
				return uc.Update(ctx, id, input(cmd))
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid contact id %q: %w", args[0], err)
			}
			return run(func(ctx context.Context, uc *usecase.ContactUseCase) (any, error) {
				return uc.Delete(ctx, id)
			})
		},
	}

	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Check the connection and print the calling user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, _, err := connect()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			who, err := client.WhoAmI(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, cfg.Dataverse.String())
			return printJSON(who)
		},
	}

	for _, c := range []*cobra.Command{createCmd, updateCmd} {
		c.Flags().StringVar(&firstName, "first-name", "", "First name")
		c.Flags().StringVar(&lastName, "last-name", "", "Last name")
		c.Flags().StringVar(&email, "email", "", "Email address")
	}

	rootCmd.AddCommand(createCmd, listCmd, updateCmd, deleteCmd, whoamiCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// input only sets the fields whose flags were given; the rest stay null.
func input(cmd *cobra.Command) usecase.ContactInput {
	var in usecase.ContactInput
	if cmd.Flags().Changed("first-name") {
		in.FirstName = &firstName
	}
	if cmd.Flags().Changed("last-name") {
		in.LastName = &lastName
	}
	if cmd.Flags().Changed("email") {
		in.Email = &email
	}
	return in
}

func connect() (*config.Config, *dataverse.Client, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.New(cfg.Logging)
	log.SetOutput(os.Stderr)

	client, err := dataverse.NewClient(dataverse.Config{
		InstanceURI:  cfg.Dataverse.InstanceURI,
		ClientID:     cfg.Dataverse.AppID,
		ClientSecret: cfg.Dataverse.SecretValue,
		TenantID:     cfg.Dataverse.TenantID,
		Timeout:      cfg.Dataverse.Timeout,
	}, dataverse.WithLogger(log))
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, client, log, nil
}

func run(op func(context.Context, *usecase.ContactUseCase) (any, error)) error {
	_, client, log, err := connect()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	uc := usecase.NewContactUseCase(client, nil, nil, log)
	if err := uc.Ready(ctx); err != nil {
		return err
	}
	out, err := op(ctx, uc)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
