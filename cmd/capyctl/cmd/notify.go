package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skaisay/capycode-frontend-sub002/internal/messaging"
	natsclient "github.com/skaisay/capycode-frontend-sub002/internal/messaging/nats"
	"github.com/skaisay/capycode-frontend-sub002/internal/protocol"
	"github.com/skaisay/capycode-frontend-sub002/internal/seeder"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification relay commands",
	Long:  "Publish events to the realtime notification relay",
}

var notifySendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one event",
	Long:  "Publish a single notification event to one user's open sessions",
	Example: `  capyctl notify send --user u-123 --json '{"type":"build_update","buildId":"b1","status":"completed"}'
  capyctl notify send --broadcast --json '{"type":"preview_update","projectId":"p1","status":"ready"}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		broadcast, _ := cmd.Flags().GetBool("broadcast")
		jsonData, _ := cmd.Flags().GetString("json")

		if jsonData == "" {
			return fmt.Errorf("--json is required")
		}
		if userID == "" && !broadcast {
			return fmt.Errorf("either --user or --broadcast is required")
		}

		event, err := protocol.ParseProducerEvent([]byte(jsonData))
		if err != nil {
			return err
		}

		client, err := connect(cmd)
		if err != nil {
			return err
		}
		defer client.Drain()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		subject := messaging.SubjectBroadcast
		if !broadcast {
			subject = messaging.UserSubject(userID)
		}

		if err := client.Publish(ctx, subject, []byte(jsonData)); err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}

		fmt.Printf("Published %s event to %s\n", event.Kind(), subject)
		return nil
	},
}

var notifySeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Stream synthetic events",
	Long:  "Stream generated notification events from a YAML scenario file",
	Example: `  capyctl notify seed --scenario scenarios/build-storm.yaml
  capyctl notify seed --scenario demo.yaml --nats-url nats://localhost:4222`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scenarioPath, _ := cmd.Flags().GetString("scenario")
		if scenarioPath == "" {
			return fmt.Errorf("--scenario is required")
		}

		scenario, err := seeder.LoadScenario(scenarioPath)
		if err != nil {
			return err
		}

		client, err := connect(cmd)
		if err != nil {
			return err
		}
		defer client.Drain()

		published, err := seeder.New(client, scenario).Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("seeding stopped after %d events: %w", published, err)
		}

		fmt.Printf("Published %d events to %d users\n", published, len(scenario.Users))
		return nil
	},
}

func connect(cmd *cobra.Command) (*natsclient.Client, error) {
	url, _ := cmd.Flags().GetString("nats-url")

	cfg := natsclient.DefaultConfig()
	cfg.URL = url
	cfg.Name = "capyctl"

	client, err := natsclient.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return client, nil
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifySendCmd)
	notifyCmd.AddCommand(notifySeedCmd)

	notifySendCmd.Flags().StringP("user", "u", "", "Target user ID")
	notifySendCmd.Flags().Bool("broadcast", false, "Send to every open connection")
	notifySendCmd.Flags().String("json", "", "Serialized event payload")

	notifySeedCmd.Flags().StringP("scenario", "s", "", "Path to scenario YAML")
}
