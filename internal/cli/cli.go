// Package cli parses the intervue command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandServe   Command = "serve"
	CommandProbe   Command = "probe"
	CommandSay     Command = "say"
	CommandCode    Command = "code"
	CommandSubmit  Command = "submit"
	CommandAsk     Command = "ask"
	CommandNext    Command = "next"
	CommandMode    Command = "mode"
	CommandReplay  Command = "replay"
	CommandStatus  Command = "status"
	CommandStop    Command = "stop"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:     {},
	CommandServe:   {},
	CommandProbe:   {},
	CommandSay:     {},
	CommandCode:    {},
	CommandSubmit:  {},
	CommandAsk:     {},
	CommandNext:    {},
	CommandMode:    {},
	CommandReplay:  {},
	CommandStatus:  {},
	CommandStop:    {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// Forwarded reports whether cmd is sent to a running session owner over IPC.
func (c Command) Forwarded() bool {
	switch c {
	case CommandSay, CommandCode, CommandSubmit, CommandAsk, CommandNext,
		CommandMode, CommandReplay, CommandStatus, CommandStop:
		return true
	default:
		return false
	}
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool

	// Text is the utterance for say.
	Text string
	// CodePath is the source file for code and submit --code.
	CodePath string
	Language string
	// QuestionsPath overrides interview.questions_file for run and serve.
	QuestionsPath string
	// Addr is the health address for probe.
	Addr string
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if err := parseCommandArgs(&parsed, args[i+1:]); err != nil {
				return Parsed{}, err
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func parseCommandArgs(parsed *Parsed, rest []string) error {
	cmd := parsed.Command
	var positional []string

	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		if !strings.HasPrefix(arg, "--") || cmd == CommandSay {
			positional = append(positional, arg)
			continue
		}

		value := func() (string, error) {
			i++
			if i >= len(rest) {
				return "", fmt.Errorf("%s requires a value", arg)
			}
			return rest[i], nil
		}

		var err error
		switch {
		case arg == "--lang" && (cmd == CommandCode || cmd == CommandSubmit):
			parsed.Language, err = value()
		case arg == "--code" && cmd == CommandSubmit:
			parsed.CodePath, err = value()
		case arg == "--questions" && (cmd == CommandRun || cmd == CommandServe):
			parsed.QuestionsPath, err = value()
		default:
			return fmt.Errorf("unknown flag for %s: %s", cmd, arg)
		}
		if err != nil {
			return err
		}
	}

	switch cmd {
	case CommandSay:
		parsed.Text = strings.TrimSpace(strings.Join(positional, " "))
		if parsed.Text == "" {
			return errors.New("say requires text")
		}
		return nil
	case CommandCode:
		if len(positional) != 1 {
			return errors.New("code requires exactly one file path")
		}
		parsed.CodePath = positional[0]
		return nil
	case CommandProbe:
		if len(positional) > 1 {
			return fmt.Errorf("unexpected arguments after command %q", cmd)
		}
		if len(positional) == 1 {
			parsed.Addr = positional[0]
		}
		return nil
	}

	if len(positional) > 0 {
		return fmt.Errorf("unexpected arguments after command %q", cmd)
	}
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Session:
  run [--questions PATH]     Own a local interview session (PulseAudio playback, IPC control)
  serve [--questions PATH]   Serve /api/chat, /v1/live websocket sessions, and gRPC health
  probe [ADDR]               Check server health (default: server.health_listen)

Control (forwarded to a running session):
  say TEXT...                Record finalized candidate speech
  code FILE [--lang L]       Replace the editor snapshot
  submit [--code FILE] [--lang L]
                             Submit the current turn
  ask                        Ask the interviewer a question
  next                       Advance to the next question
  mode                       Toggle code mode
  replay                     Replay the question prompt
  status                     Print session state
  stop                       End the session

Tools:
  devices                    List audio sources and sinks
  doctor                     Run configuration and environment checks
  version                    Print version information
  help                       Show this help

Flags:
  --config PATH   Config file path (default: $INTERVUE_CONFIG, then $XDG_CONFIG_HOME/intervue/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
