// Package cli defines the oto command grammar.
package cli

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/alecthomas/kong"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandPress   Command = "press"
	CommandRelease Command = "release"
	CommandStatus  Command = "status"
	CommandHistory Command = "history"
	CommandReload  Command = "reload"
	CommandStop    Command = "stop"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandKeySet  Command = "key set"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// NoIndex marks an unset --copy flag.
const NoIndex = -1

// Parsed is the resolved invocation.
type Parsed struct {
	Command    Command
	ConfigPath string
	// Printed reports that help or version output was already written.
	Printed bool

	HistoryClear bool
	HistoryCopy  int
	KeyValue     string
}

type historyCmd struct {
	Clear bool `help:"Remove all history entries."`
	Copy  int  `help:"Copy entry N (as listed) to the clipboard." placeholder:"N" default:"-1"`
}

type keyCmd struct {
	Set struct {
		Value string `arg:"" help:"API key to store in the system keychain."`
	} `cmd:"" help:"Store the transcription API key in the system keychain."`
}

type grammar struct {
	Config  string           `help:"Config file path (default: $XDG_CONFIG_HOME/oto/config.jsonc)." placeholder:"PATH"`
	Version kong.VersionFlag `help:"Show version."`

	Run     struct{}   `cmd:"" help:"Run the hold-to-talk session in the foreground."`
	Press   struct{}   `cmd:"" help:"Signal the hotkey going down to the running session."`
	Release struct{}   `cmd:"" help:"Signal the hotkey going up to the running session."`
	Status  struct{}   `cmd:"" help:"Print the session state."`
	History historyCmd `cmd:"" help:"List recent transcriptions."`
	Reload  struct{}   `cmd:"" help:"Reload configuration in the running session."`
	Stop    struct{}   `cmd:"" help:"Stop the running session."`
	Devices struct{}   `cmd:"" help:"List available input devices."`
	Doctor  struct{}   `cmd:"" help:"Run configuration and environment checks."`
	Key     keyCmd     `cmd:"" help:"Manage the stored API key."`
	Show    struct{}   `cmd:"" name:"version" help:"Print version information."`
}

func newParser(g *grammar, versionText string, stdout, stderr io.Writer, exited *bool) (*kong.Kong, error) {
	return kong.New(g,
		kong.Name("oto"),
		kong.Description("Hold-to-talk dictation: hold the hotkey, speak, release to paste."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) { *exited = true }),
		kong.Vars{"version": versionText},
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
}

// Parse resolves args. Help and version flags write to stdout and set
// Printed. No arguments resolves to CommandHelp.
func Parse(args []string, versionText string, stdout, stderr io.Writer) (Parsed, error) {
	if len(args) == 0 {
		return Parsed{Command: CommandHelp, HistoryCopy: NoIndex}, nil
	}

	var g grammar
	var exited bool
	parser, err := newParser(&g, versionText, stdout, stderr, &exited)
	if err != nil {
		return Parsed{}, err
	}

	ctx, err := parser.Parse(args)
	if exited {
		return Parsed{Command: CommandHelp, Printed: true, HistoryCopy: NoIndex}, nil
	}
	if err != nil {
		return Parsed{}, err
	}

	parsed := Parsed{
		Command:      commandFor(ctx.Command()),
		ConfigPath:   strings.TrimSpace(g.Config),
		HistoryClear: g.History.Clear,
		HistoryCopy:  g.History.Copy,
		KeyValue:     g.Key.Set.Value,
	}
	if parsed.HistoryClear && parsed.HistoryCopy != NoIndex {
		return Parsed{}, errors.New("history: --clear and --copy are mutually exclusive")
	}
	if parsed.HistoryCopy < NoIndex {
		return Parsed{}, errors.New("history: --copy must be a non-negative index")
	}
	return parsed, nil
}

// commandFor maps kong's command path ("key set <value>") to a Command.
func commandFor(path string) Command {
	var words []string
	for _, field := range strings.Fields(path) {
		if strings.HasPrefix(field, "<") {
			break
		}
		words = append(words, field)
	}
	return Command(strings.Join(words, " "))
}

// HelpText renders the usage screen.
func HelpText() string {
	var buf bytes.Buffer
	var g grammar
	var exited bool
	parser, err := newParser(&g, "", &buf, &buf, &exited)
	if err != nil {
		return err.Error()
	}
	_, _ = parser.Parse([]string{"--help"})
	return buf.String()
}
