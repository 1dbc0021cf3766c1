// Package interactive runs the terminal side of a chat session: it reads
// what the user types, sends it, and prints what peers say without
// garbling the line being typed.
package interactive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mqtt-chat/dispatch"
	"mqtt-chat/runtime/workers"
	"mqtt-chat/session"
	"strings"
	"sync"
	"time"
)

// Exit codes returned by Loop.Run.
const (
	ExitOK      = 0
	ExitFailure = 1
)

const quitCommand = "/quit"

const (
	defaultSendTimeout     = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	// inputGrace bounds the wait for the input goroutine after Close, since
	// a read blocked on a terminal cannot always be interrupted.
	inputGrace = 200 * time.Millisecond
)

type Options struct {
	SendTimeout     time.Duration
	ShutdownTimeout time.Duration
	RestartInterval time.Duration
}

// Loop coordinates the input goroutine, the dispatcher worker and the
// session until the session ends.
type Loop struct {
	log     *slog.Logger
	session *session.Manager
	console *Console
	reader  LineReader
	options Options
}

func NewLoop(log *slog.Logger, session *session.Manager, console *Console, reader LineReader, options Options) *Loop {
	if options.SendTimeout <= 0 {
		options.SendTimeout = defaultSendTimeout
	}
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Loop{
		log:     log,
		session: session,
		console: console,
		reader:  reader,
		options: options,
	}
}

// Run connects, serves the session and returns the exit code: ExitOK after
// the user quit (or ctx was canceled), ExitFailure when the session could
// not start or was lost.
func (l *Loop) Run(ctx context.Context) int {
	config := l.session.Config()
	topic := config.TopicName()

	l.console.Status("Connecting to " + topic)
	if err := l.session.Connect(ctx); err != nil {
		l.log.Debug("Handshake failed", "error", err)
		l.console.Status(err.Error())
		_ = l.reader.Close()
		return ExitFailure
	}
	l.console.Status("Connected to " + topic)
	l.session.Activate()

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	supervisor := workers.NewSupervisor(l.log, l.options.RestartInterval)
	supervisor.Add(dispatch.NewDispatcher(l.log, topic, config.Identity, l.session.Events(), l.console, l.session))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		supervisor.Run(workerCtx)
	}()

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		l.readInput(ctx)
	}()

	select {
	case <-l.session.Done():
	case <-ctx.Done():
		l.log.Debug("Interrupted")
		l.session.Quit()
	}
	l.console.StopPrompt()

	supervisor.Stop()
	stopWorkers()
	wg.Wait()
	_ = l.reader.Close()

	code := ExitOK
	if err := l.session.Err(); err != nil {
		l.console.Status(err.Error())
		code = ExitFailure
	} else {
		l.console.Status("Disconnected")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.options.ShutdownTimeout)
	defer cancel()
	if err := l.session.Shutdown(shutdownCtx); err != nil {
		l.log.Warn("Shutdown incomplete", "error", err)
	}

	select {
	case <-inputDone:
	case <-time.After(inputGrace):
		l.log.Debug("Input still blocked, leaving it behind")
	}
	return code
}

func (l *Loop) readInput(ctx context.Context) {
	for {
		line, err := l.reader.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				l.log.Debug("Input closed", "error", err)
			}
			l.session.Quit()
			return
		}
		line = strings.TrimRight(line, "\r")
		if line == quitCommand {
			l.session.Quit()
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, l.options.SendTimeout)
		err = l.session.Send(sendCtx, line)
		cancel()

		select {
		case <-l.session.Done():
			return
		default:
		}
		if err != nil {
			l.console.Status(err.Error())
		}
	}
}
