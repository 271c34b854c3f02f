package sync

import (
	"context"
	"slices"

	"github.com/rs/zerolog"

	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/logging"
)

// Command names a sync command.
type Command string

const (
	CommandExport Command = "export"
	CommandImport Command = "import"
	CommandClean  Command = "clean"
)

// String returns the string representation of a command.
func (c Command) String() string {
	return string(c)
}

// State is a step of a command's state machine.
type State string

const (
	StateIdle       State = "idle"
	StateReading    State = "reading"
	StateFetching   State = "fetching"
	StateMapping    State = "mapping"
	StateWriting    State = "writing"
	StateDiffing    State = "diffing"
	StateClustering State = "clustering"
	StatePlanning   State = "planning"
	StateApplying   State = "applying"
	StateDone       State = "done"
)

// String returns the string representation of a state.
func (s State) String() string {
	return string(s)
}

// sequences lists the states of each command in order.
var sequences = map[Command][]State{
	CommandExport: {StateIdle, StateFetching, StateMapping, StateWriting, StateDone},
	CommandImport: {StateIdle, StateReading, StateMapping, StateDiffing, StateApplying, StateDone},
	CommandClean:  {StateIdle, StateFetching, StateClustering, StatePlanning, StateApplying, StateDone},
}

// machine tracks the progress of one command invocation. It only moves
// forward; jumping ahead is allowed so dry runs can finish from Diffing
// or Planning.
type machine struct {
	command Command
	states  []State
	pos     int
	result  *Result
	logger  *zerolog.Logger
}

func newMachine(ctx context.Context, command Command, result *Result) *machine {
	result.Command = command
	result.State = StateIdle
	return &machine{
		command: command,
		states:  sequences[command],
		result:  result,
		logger:  logging.FromContext(ctx),
	}
}

// current returns the state the machine is in.
func (m *machine) current() State {
	return m.states[m.pos]
}

// enter moves to next. Moving backwards or to an unknown state panics;
// both are programming errors.
func (m *machine) enter(next State) {
	i := slices.Index(m.states, next)
	if i <= m.pos {
		panic("sync: invalid transition " + string(m.current()) + " -> " + string(next))
	}
	m.logger.Debug().
		Str("command", m.command.String()).
		Str("from", m.current().String()).
		Str("to", next.String()).
		Msg("State transition")
	m.pos = i
	m.result.State = next
}

// fail wraps err with the command and the state it failed in.
func (m *machine) fail(err error) error {
	m.result.Failed = true
	m.logger.Error().
		Err(err).
		Str("command", m.command.String()).
		Str("state", m.current().String()).
		Msg("Command failed")
	return errors.NewStageError(m.command.String(), m.current().String(), err)
}
