package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/solax-http-integration/cmd"
)

func deviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "solax-host",
			EnvVars: []string{"SOLAX_HOST"},
		},
		&cli.StringFlag{
			Name:    "solax-password",
			Usage:   "registration number printed on the wifi dongle",
			EnvVars: []string{"SOLAX_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "device-serial",
			EnvVars: []string{"DEVICE_SERIAL"},
			Value:   "",
		},
		&cli.BoolFlag{
			Name:    "use-x-forwarded-for",
			EnvVars: []string{"USE_X_FORWARDED_FOR"},
			Value:   false,
		},
		&cli.DurationFlag{
			Name:    "api-timeout",
			EnvVars: []string{"API_TIMEOUT"},
			Value:   10 * time.Second,
		},
		&cli.Uint64Flag{
			Name:    "retries",
			EnvVars: []string{"RETRIES"},
			Value:   3,
		},
		&cli.DurationFlag{
			Name:    "retry-delay",
			EnvVars: []string{"RETRY_DELAY"},
			Value:   500 * time.Millisecond,
		},
		&cli.StringFlag{
			Name:    "log-level",
			EnvVars: []string{"LOG_LEVEL"},
			Value:   "INFO",
		},
	}
}

func main() {
	app := &cli.App{
		Name:   "solax-http",
		Usage:  "poller for SolaX inverters and EV chargers on the local HTTP API",
		Action: cmd.RunCommand,
		Flags: append([]cli.Flag{
			&cli.DurationFlag{
				Name:    "poll-interval",
				EnvVars: []string{"POLL_INTERVAL"},
				Value:   15 * time.Second,
			},
			&cli.DurationFlag{
				Name:    "refresh-cooldown",
				EnvVars: []string{"REFRESH_COOLDOWN"},
				Value:   1500 * time.Millisecond,
			},
		}, deviceFlags()...),
		Commands: []*cli.Command{
			{
				Name:   "probe",
				Usage:  "detect the device and print its identity",
				Action: cmd.ProbeCommand,
				Flags:  deviceFlags(),
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
