// Package commands parses and dispatches the dashboard's slash commands.
package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sandeepkv93/taskpilot/internal/model"
)

type Type string

const (
	TypeTop     Type = "top"
	TypeEnergy  Type = "energy"
	TypeStale   Type = "stale"
	TypeDone    Type = "done"
	TypeLink    Type = "link"
	TypeShow    Type = "show"
	TypeSync    Type = "sync"
	TypeUnstuck Type = "unstuck"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Limit 0 means the caller's default.
type TopArgs struct {
	Limit int
}

type EnergyArgs struct {
	Level model.EnergyLevel
	Limit int
}

type DoneArgs struct {
	TaskID   string
	Upstream bool
}

type LinkArgs struct {
	TaskID string
}

type ShowArgs struct {
	TaskID string
}

type UnstuckArgs struct {
	TaskID  string
	Refresh bool
}

type Command struct {
	Type    Type
	Raw     string
	Top     *TopArgs
	Energy  *EnergyArgs
	Done    *DoneArgs
	Link    *LinkArgs
	Show    *ShowArgs
	Unstuck *UnstuckArgs
}

// Names lists the commands in palette order.
func Names() []Type {
	return []Type{TypeTop, TypeEnergy, TypeStale, TypeDone, TypeLink, TypeShow, TypeUnstuck, TypeSync}
}

func Usage(t Type) string {
	switch t {
	case TypeTop:
		return "top [N]"
	case TypeEnergy:
		return "energy low|medium|high [N]"
	case TypeStale:
		return "stale"
	case TypeDone:
		return "done ID [upstream]"
	case TypeLink:
		return "link ID"
	case TypeShow:
		return "show ID"
	case TypeSync:
		return "sync"
	case TypeUnstuck:
		return "unstuck ID [refresh]"
	default:
		return string(t)
	}
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeTop:
		return parseTop(input, args)
	case TypeEnergy:
		return parseEnergy(input, args)
	case TypeStale, TypeSync:
		if len(args) > 0 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: head + " takes no arguments"}
		}
		return Command{Type: Type(head), Raw: input}, nil
	case TypeDone:
		return parseDone(input, args)
	case TypeLink:
		id, err := taskID(head, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypeLink, Raw: input, Link: &LinkArgs{TaskID: id}}, nil
	case TypeShow:
		id, err := taskID(head, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypeShow, Raw: input, Show: &ShowArgs{TaskID: id}}, nil
	case TypeUnstuck:
		return parseUnstuck(input, args)
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseTop(raw string, args []string) (Command, error) {
	if len(args) > 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "usage: " + Usage(TypeTop)}
	}
	limit := 0
	if len(args) == 1 {
		n, err := parseLimit(args[0])
		if err != nil {
			return Command{}, err
		}
		limit = n
	}
	return Command{Type: TypeTop, Raw: raw, Top: &TopArgs{Limit: limit}}, nil
}

func parseEnergy(raw string, args []string) (Command, error) {
	if len(args) == 0 || len(args) > 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "usage: " + Usage(TypeEnergy)}
	}
	level, err := model.ParseEnergyLevel(args[0])
	if err != nil {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown energy level %q", args[0])}
	}
	limit := 0
	if len(args) == 2 {
		if limit, err = parseLimit(args[1]); err != nil {
			return Command{}, err
		}
	}
	return Command{Type: TypeEnergy, Raw: raw, Energy: &EnergyArgs{Level: level, Limit: limit}}, nil
}

func parseDone(raw string, args []string) (Command, error) {
	if len(args) == 0 || len(args) > 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "usage: " + Usage(TypeDone)}
	}
	upstream := false
	if len(args) == 2 {
		if !strings.EqualFold(args[1], "upstream") {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "usage: " + Usage(TypeDone)}
		}
		upstream = true
	}
	return Command{Type: TypeDone, Raw: raw, Done: &DoneArgs{TaskID: args[0], Upstream: upstream}}, nil
}

func parseUnstuck(raw string, args []string) (Command, error) {
	if len(args) == 0 || len(args) > 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "usage: " + Usage(TypeUnstuck)}
	}
	refresh := false
	if len(args) == 2 {
		if !strings.EqualFold(args[1], "refresh") {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "usage: " + Usage(TypeUnstuck)}
		}
		refresh = true
	}
	return Command{Type: TypeUnstuck, Raw: raw, Unstuck: &UnstuckArgs{TaskID: args[0], Refresh: refresh}}, nil
}

func taskID(head string, args []string) (string, error) {
	if len(args) != 1 {
		return "", &CommandError{Code: ErrCodeInvalidArgument, Message: head + " requires a task id"}
	}
	return args[0], nil
}

func parseLimit(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("limit must be a positive integer, got %q", raw)}
	}
	return n, nil
}
