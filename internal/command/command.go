// Package command implements the /resetaudio chat command.
//
// The host passes everything after the command name as one argument
// string. It is trimmed and lowercased, then matched as a prefix against
// the verbs in a fixed order: configure, reset, harder, help. The first
// verb it prefixes wins, so "h" means harder. An empty argument means
// reset.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Name is the registered chat command.
const Name = "/resetaudio"

// HelpMessage is printed by the help verb and shown in the host's command
// list.
const HelpMessage = "Manually trigger game audio reset.\n" +
	"* /resetaudio (r|reset): Reset audio right now.\n" +
	"* /resetaudio (h|harder): Completely reloads audio.\n" +
	"* /resetaudio c|configure: Open ResetAudio configuration window.\n" +
	"* /resetaudio h|help: Print help message."

// Verb is a resolved sub-command.
type Verb string

const (
	VerbConfigure Verb = "configure"
	VerbReset     Verb = "reset"
	VerbHarder    Verb = "harder"
	VerbHelp      Verb = "help"
)

// Verbs lists the verbs in prefix resolution order.
var Verbs = []Verb{VerbConfigure, VerbReset, VerbHarder, VerbHelp}

// ErrInvalidArgument is matched by *InvalidArgumentError.
var ErrInvalidArgument = errors.New("invalid argument")

// InvalidArgumentError is returned for an argument that prefixes no verb.
type InvalidArgumentError struct {
	// Argument is the normalized argument.
	Argument string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("Invalid argument supplied: \"%s\". Type \"%s help\" for help.", e.Argument, Name)
}

// Is makes errors.Is(err, ErrInvalidArgument) succeed.
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// Normalize trims arguments and lowercases them without regard to the
// user's locale.
func Normalize(arguments string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(arguments))
}

// Resolve maps raw arguments to a verb.
func Resolve(arguments string) (Verb, error) {
	arg := Normalize(arguments)
	if arg == "" {
		return VerbReset, nil
	}
	for _, v := range Verbs {
		if strings.HasPrefix(string(v), arg) {
			return v, nil
		}
	}
	return "", &InvalidArgumentError{Argument: arg}
}

// Handler performs the verbs.
type Handler interface {
	// OpenConfig shows the configuration window and persists that it is
	// visible.
	OpenConfig() error

	// ResetNow resets audio immediately.
	ResetNow() error

	// ReloadAudio starts a complete audio reload.
	ReloadAudio() error
}

// Chat is the host's chat log.
type Chat interface {
	Print(msg string)
	PrintError(msg string)
}

// Command dispatches /resetaudio invocations.
type Command struct {
	root *cobra.Command
	chat Chat
}

// New builds the command tree.
func New(h Handler, chat Chat) *Command {
	c := &Command{chat: chat}

	root := &cobra.Command{
		Use:           strings.TrimPrefix(Name, "/"),
		Short:         "Manually trigger game audio reset",
		Long:          HelpMessage,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(c.verb(VerbConfigure, "Open ResetAudio configuration window", h.OpenConfig))
	root.AddCommand(c.verb(VerbReset, "Reset audio right now", h.ResetNow))
	root.AddCommand(c.verb(VerbHarder, "Completely reloads audio", h.ReloadAudio))
	root.SetHelpCommand(&cobra.Command{
		Use:   string(VerbHelp),
		Short: "Print help message",
		Args:  cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, args []string) {
			chat.Print(HelpMessage)
		},
	})
	root.InitDefaultHelpCmd()

	c.root = root
	return c
}

func (c *Command) verb(v Verb, short string, run func() error) *cobra.Command {
	return &cobra.Command{
		Use:   string(v),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := run(); err != nil {
				return fmt.Errorf("%s: %w", v, err)
			}
			return nil
		},
	}
}

// Root returns the cobra command tree.
func (c *Command) Root() *cobra.Command {
	return c.root
}

// Run handles one invocation. Invalid arguments and handler failures are
// printed to chat as errors and returned.
func (c *Command) Run(arguments string) error {
	verb, err := Resolve(arguments)
	if err != nil {
		c.chat.PrintError(err.Error())
		return err
	}

	c.root.SetArgs([]string{string(verb)})
	if err := c.root.Execute(); err != nil {
		c.chat.PrintError(fmt.Sprintf("[Reset Audio] %v", err))
		return err
	}
	return nil
}
