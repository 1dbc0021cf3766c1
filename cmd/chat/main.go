package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mqtt-chat/contract"
	"mqtt-chat/interactive"
	"mqtt-chat/session"
	"mqtt-chat/storage"
	"mqtt-chat/transport/mqtt"
	redistransport "mqtt-chat/transport/redis"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/chzyer/readline"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

// Exit codes for the chat client.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run(os.Args[1:], os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run loads the environment defaults, parses the flags and runs one chat
// session. Every resource is released by a defer before it returns.
func run(args []string, stdin io.Reader, stdout io.Writer) (int, error) {
	// A missing .env file is fine, the environment may be set already.
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := -1
	cmd := newCommand(config, func(ctx context.Context, settings Settings) (int, error) {
		return chat(ctx, config, settings, stdin, stdout)
	}, &code)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)

	err := cmd.ExecuteContext(ctx)
	switch {
	case code >= 0:
		return code, err
	case err != nil:
		// Cobra rejected the command line before running anything.
		return exitConfig, err
	default:
		return exitOK, nil
	}
}

type chatFunc func(ctx context.Context, settings Settings) (int, error)

func newCommand(config Config, chat chatFunc, code *int) *cobra.Command {
	settings := NewSettings(config)
	cmd := &cobra.Command{
		Use:           "chat",
		Short:         "Chat with everyone subscribed to a topic",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := chat(cmd.Context(), settings)
			*code = c
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&settings.Topic, "topic", "t", "", "topic to join")
	flags.StringVarP(&settings.Username, "username", "u", "", "name shown to the other users")
	flags.StringVarP(&settings.Server, "servername", "s", settings.Server, "broker host")
	flags.IntVarP(&settings.Port, "port", "p", settings.Port, "broker port")
	flags.BoolVar(&settings.CleanSession, "clean-session", settings.CleanSession, "discard the broker-side session on connect")
	flags.StringVar(&settings.Transport, "transport", settings.Transport, "broker protocol: mqtt or redis")
	flags.StringVar(&settings.SessionDir, "session-dir", settings.SessionDir, "directory persisting in-flight MQTT messages")
	flags.StringVar(&settings.LogLevel, "log-level", settings.LogLevel, "DEBUG, INFO, WARN or ERROR")
	flags.BoolVar(&settings.NoColor, "no-color", settings.NoColor, "print sender names without colors")
	_ = cmd.MarkFlagRequired("topic")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func chat(ctx context.Context, config Config, settings Settings, stdin io.Reader, stdout io.Writer) (int, error) {
	if err := settings.Validate(); err != nil {
		return exitConfig, err
	}
	level, err := settings.Level()
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromLevel(level)
	sessionConfig := settings.SessionConfig()

	transport, release, err := newTransport(log, config, settings)
	if err != nil {
		return exitRuntime, err
	}
	defer release()

	manager := session.NewManager(log, transport, sessionConfig, 0)
	console, reader, err := newTerminal(settings, stdin, stdout)
	if err != nil {
		return exitRuntime, err
	}
	loop := interactive.NewLoop(log, manager, console, reader, interactive.Options{
		SendTimeout:     config.SendTimeout,
		ShutdownTimeout: config.ShutdownTimeout,
		RestartInterval: config.RestartInterval,
	})
	return loop.Run(ctx), nil
}

// newTransport builds the adapter for the chosen protocol. release frees
// whatever the adapter needed besides itself.
func newTransport(log *slog.Logger, config Config, settings Settings) (contract.Transport, func(), error) {
	switch settings.Transport {
	case "redis":
		return redistransport.New(log, redistransport.Options{
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		}), func() {}, nil
	default:
		mqtt.BridgeLogs(log)
		options := mqtt.Options{ConnectTimeout: config.ConnectTimeout}
		if settings.SessionDir == "" || settings.CleanSession {
			return mqtt.New(log, options), func() {}, nil
		}

		db, err := badger.Open(badger.DefaultOptions(settings.SessionDir).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return nil, nil, fmt.Errorf("session store opening failed: %w", err)
		}
		options.Store = storage.NewSessionStore(db, log, settings.SessionConfig().ClientIdentifier())
		return mqtt.New(log, options), func() {
			log.Debug("Closing BadgerDB...")
			_ = db.Close()
		}, nil
	}
}

// newTerminal uses a line editor when talking to a terminal, and plain
// line reads otherwise (pipes, tests).
func newTerminal(settings Settings, stdin io.Reader, stdout io.Writer) (*interactive.Console, interactive.LineReader, error) {
	colors := !settings.NoColor
	if stdin == os.Stdin && stdout == os.Stdout && readline.DefaultIsTerminal() {
		reader, err := interactive.NewTerminalReader(settings.Username)
		if err != nil {
			return nil, nil, fmt.Errorf("terminal setup failed: %w", err)
		}
		return interactive.NewConsole(reader.Stdout(), settings.Username, false, colors), reader, nil
	}
	console := interactive.NewConsole(stdout, settings.Username, true, colors)
	return console, interactive.NewPlainReader(stdin, console), nil
}
