package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/nobletooth/parrot/pkg/cache"
	"github.com/nobletooth/parrot/pkg/flood"
	"github.com/nobletooth/parrot/pkg/scan"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/redcon"
)

const RedisOk = "OK"

var (
	address = flag.String("address", ":6380", "The ip:port to listen on for Redis protocol.")

	commandsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "port_commands_total",
		Help: "Total number of Redis protocol commands handled.",
	}, []string{"command", "status" /* ok | error */})
)

// knownCommands bounds the `command` label of commandsMetric.
var knownCommands = []string{"PING", "QUIT", "SIM.ADD", "SIM.CHECK", "SIM.LEN", "SIM.KEYS", "SIM.SCOPES"}

// redisCommand represents a Redis command with its arguments.
type redisCommand struct {
	command string
	args    []string
}

// redisOutput conforms to a real Redis server output on non pub / sub commands.
type redisOutput struct {
	closeConnection bool          // Closes the connection if true.
	writeNil        bool          // Writes a nil value if true.
	err             *string       // Error to return if set.
	writeInt        *int          // Writes an integer value if set.
	writeBulk       *string       // Writes a bulk string if set.
	writeArray      []redisOutput // Writes an array of the given outputs if non-nil.
	writeString     string        // Writes a simple string value otherwise.
}

func closeRedisConnection(msg string) redisOutput {
	return redisOutput{writeString: msg, closeConnection: true}
}

func writeRedisNil() redisOutput {
	return redisOutput{writeNil: true}
}

func writeRedisInt(i int) redisOutput {
	return redisOutput{writeInt: &i}
}

func writeRedisString(s string) redisOutput {
	return redisOutput{writeString: s}
}

func writeRedisBulk(s string) redisOutput {
	return redisOutput{writeBulk: &s}
}

func writeRedisArray(items ...redisOutput) redisOutput {
	if items == nil {
		items = []redisOutput{}
	}
	return redisOutput{writeArray: items}
}

func writeRedisError(err error) redisOutput {
	msg := "ERR " + err.Error()
	return redisOutput{err: &msg}
}

// writeRedisOptional writes a present string as bulk and an absent one as nil.
func writeRedisOptional(value string, present bool) redisOutput {
	if !present {
		return writeRedisNil()
	}
	return writeRedisBulk(value)
}

// formatScore renders a score the way Redis renders doubles, e.g. "-1", "0" or "0.8109".
func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func wrongArity(command string) error {
	return fmt.Errorf("wrong number of arguments for '%s' command", strings.ToLower(command))
}

type redisHandler struct {
	detector *flood.Detector
}

// newRedisHandler creates a new redisHandler.
func newRedisHandler(detector *flood.Detector) (*redisHandler, error) {
	if detector == nil {
		return nil, errors.New("expected a non-nil flood detector")
	}
	return &redisHandler{detector: detector}, nil
}

// handle executes `cmd` and records it in the commands metric.
func (rh *redisHandler) handle(cmd redisCommand) redisOutput {
	cmd.command = strings.ToUpper(cmd.command)
	output := rh.dispatch(cmd)

	label, status := cmd.command, "ok"
	if !slices.Contains(knownCommands, label) {
		label = "unknown"
	}
	if output.err != nil {
		status = "error"
	}
	commandsMetric.WithLabelValues(label, status).Inc()
	return output
}

func (rh *redisHandler) dispatch(cmd redisCommand) redisOutput {
	registry := rh.detector.Registry()
	switch cmd.command {
	case "PING":
		return writeRedisString("PONG")
	case "QUIT":
		return closeRedisConnection(RedisOk)
	case "SIM.ADD": // SIM.ADD scope key text [value]
		if len(cmd.args) != 3 && len(cmd.args) != 4 {
			return writeRedisError(wrongArity(cmd.command))
		}
		scopeName, key, text := cmd.args[0], cmd.args[1], cmd.args[2]
		var match cache.Match[string]
		if len(cmd.args) == 4 {
			match = registry.Insert(scopeName, key, text, cmd.args[3])
		} else {
			match = registry.InsertText(scopeName, key, text)
		}
		matchedValue, hasValue := match.Value.Get()
		matchedKey, hasKey := match.Key.Get()
		return writeRedisArray(
			writeRedisBulk(formatScore(match.Score)),
			writeRedisOptional(matchedKey, hasKey),
			writeRedisOptional(matchedValue, hasValue),
		)
	case "SIM.CHECK": // SIM.CHECK scope key text [value]
		if len(cmd.args) != 3 && len(cmd.args) != 4 {
			return writeRedisError(wrongArity(cmd.command))
		}
		var payload *string
		if len(cmd.args) == 4 {
			payload = &cmd.args[3]
		}
		report := rh.detector.Check(cmd.args[0], cmd.args[1], cmd.args[2], payload)
		matchedKey, hasKey := report.Match.Key.Get()
		return writeRedisArray(
			writeRedisBulk(string(report.Verdict)),
			writeRedisBulk(formatScore(report.Match.Score)),
			writeRedisOptional(matchedKey, hasKey),
		)
	case "SIM.LEN": // SIM.LEN scope
		if len(cmd.args) != 1 {
			return writeRedisError(wrongArity(cmd.command))
		}
		return writeRedisInt(registry.Len(cmd.args[0]))
	case "SIM.KEYS": // SIM.KEYS scope [pattern]
		if len(cmd.args) != 1 && len(cmd.args) != 2 {
			return writeRedisError(wrongArity(cmd.command))
		}
		pattern := "*"
		if len(cmd.args) == 2 {
			pattern = cmd.args[1]
		}
		keys, err := scan.MatchGlob(pattern, slices.Values(registry.Keys(cmd.args[0])))
		if err != nil {
			return writeRedisError(err)
		}
		items := make([]redisOutput, 0)
		for key := range keys {
			items = append(items, writeRedisBulk(key))
		}
		return writeRedisArray(items...)
	case "SIM.SCOPES":
		if len(cmd.args) != 0 {
			return writeRedisError(wrongArity(cmd.command))
		}
		return writeRedisInt(len(registry.Scopes()))
	default:
		return writeRedisError(fmt.Errorf("unknown command '%s'", cmd.command))
	}
}

// writeRedisOutput serializes `output` on `conn`.
func writeRedisOutput(conn redcon.Conn, output redisOutput) {
	switch {
	case output.err != nil:
		conn.WriteError(*output.err)
	case output.writeNil:
		conn.WriteNull()
	case output.writeInt != nil:
		conn.WriteInt(*output.writeInt)
	case output.writeBulk != nil:
		conn.WriteBulkString(*output.writeBulk)
	case output.writeArray != nil:
		conn.WriteArray(len(output.writeArray))
		for _, item := range output.writeArray {
			writeRedisOutput(conn, item)
		}
	default:
		conn.WriteString(output.writeString)
	}
}

// RunRedisServer starts a Redis protocol server answering SIM.* commands with the given detector. It blocks until
// `ctx` is done or the server fails.
func RunRedisServer(ctx context.Context, detector *flood.Detector) error {
	if *address == "" {
		return errors.New("expected a non-empty --address flag")
	}

	redisHandler, err := newRedisHandler(detector)
	if err != nil {
		return fmt.Errorf("failed to create a new redis handler: %w", err)
	}

	redisServer := redcon.NewServerNetwork("tcp" /*net*/, *address,
		/*handler*/ func(conn redcon.Conn, cmd redcon.Command) {
			// Convert redcon.Command to redisCommand.
			command := redisCommand{command: string(cmd.Args[0]), args: make([]string, len(cmd.Args)-1)}
			for i := 1; i < len(cmd.Args); i++ {
				command.args[i-1] = string(cmd.Args[i])
			}
			output := redisHandler.handle(command)
			writeRedisOutput(conn, output)
			if output.closeConnection {
				if err := conn.Close(); err != nil {
					slog.Error("Failed to close connection.", "conn", conn.Context(), "error", err)
				}
			}
		},
		/*accept*/ func(conn redcon.Conn) bool {
			connId := uuid.NewString()
			conn.SetContext(connId)
			slog.Debug("Accepted connection.", "conn", connId, "remote", conn.RemoteAddr())
			return true // Accept all connections.
		},
		/*close*/ func(conn redcon.Conn, err error) {
			if err != nil {
				slog.Warn("Connection closed with an error.", "conn", conn.Context(), "error", err)
				return
			}
			slog.Debug("Connection closed.", "conn", conn.Context())
		})

	serverErrSignal := make(chan error, 1)
	go func() { serverErrSignal <- redisServer.ListenAndServe() }()
	slog.Info("Redis protocol server started.", "address", *address)

	return awaitRedisServer(ctx, redisServer.Close, serverErrSignal)
}

// awaitRedisServer blocks until `ctx` is done, then closes the server, or until the server stops on its own, which is
// always an error.
func awaitRedisServer(ctx context.Context, closeServer func() error, serverErrSignal <-chan error) error {
	select {
	case <-ctx.Done():
		if err := closeServer(); err != nil {
			return fmt.Errorf("failed to close parrot: %w", err)
		}
		return nil // Exited with no errors.
	case err := <-serverErrSignal:
		if err == nil {
			return errors.New("redis server stopped unexpectedly")
		}
		return fmt.Errorf("redis server stopped unexpectedly: %w", err)
	}
}
