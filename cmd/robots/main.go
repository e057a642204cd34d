package main

import (
	"context"
	"log"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/urfave/cli/v3"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "robots",
		Usage: "Run band-trading robots against a broker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config `FILE`",
				Sources: cli.EnvVars("ROBOTS_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the robots, the scheduled jobs and the ops server until interrupted",
				Action: serveAction,
			},
			{
				Name:   "run",
				Usage:  "Mark the robots running; a serving process subscribes them",
				Action: runAction,
			},
			{
				Name:   "stop",
				Usage:  "Mark the robots stopped; a serving process unsubscribes them",
				Action: stopAction,
			},
			{
				Name:   "state",
				Usage:  "Print the persisted run state",
				Action: stateAction,
			},
			{
				Name:  "import",
				Usage: "Backfill orders from the broker's operation history",
				Flags: []cli.Flag{
					&cli.TimestampFlag{
						Name:     "from",
						Usage:    "Start date in `YYYY-MM-DD` format (or other RFC3339 compatible)",
						Required: true,
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02", time.RFC3339},
						},
					},
					&cli.TimestampFlag{
						Name:  "to",
						Usage: "End date in `YYYY-MM-DD` format (or other RFC3339 compatible). Defaults to now.",
						Value: time.Now(),
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02", time.RFC3339},
						},
					},
					&cli.StringFlag{
						Name:     "instrument",
						Aliases:  []string{"i"},
						Usage:    "Instrument id or ticker",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "robot",
						Aliases: []string{"r"},
						Usage:   "Attribute the imported orders to this robot id",
					},
				},
				Action: importAction,
			},
			{
				Name:   "check-payments",
				Usage:  "Sync settled orders that still miss payment details",
				Action: checkPaymentsAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the config file",
				Action: schemaAction,
			},
			{
				Name:   "version",
				Usage:  "Print the binary version",
				Action: versionAction,
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
