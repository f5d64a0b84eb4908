package commands

import (
	"context"
	"fmt"
)

type Result struct {
	Message string
}

type Handlers struct {
	Top     func(context.Context, TopArgs) (Result, error)
	Energy  func(context.Context, EnergyArgs) (Result, error)
	Stale   func(context.Context) (Result, error)
	Done    func(context.Context, DoneArgs) (Result, error)
	Link    func(context.Context, LinkArgs) (Result, error)
	Show    func(context.Context, ShowArgs) (Result, error)
	Unstuck func(context.Context, UnstuckArgs) (Result, error)
	Sync    func(context.Context) (Result, error)
}

func missing(t Type) error {
	return &CommandError{Code: ErrCodeHandlerMissing, Message: fmt.Sprintf("%s handler not configured", t)}
}

func Execute(ctx context.Context, cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeTop:
		if handlers.Top == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Top(ctx, *cmd.Top)
	case TypeEnergy:
		if handlers.Energy == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Energy(ctx, *cmd.Energy)
	case TypeStale:
		if handlers.Stale == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Stale(ctx)
	case TypeDone:
		if handlers.Done == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Done(ctx, *cmd.Done)
	case TypeLink:
		if handlers.Link == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Link(ctx, *cmd.Link)
	case TypeShow:
		if handlers.Show == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Show(ctx, *cmd.Show)
	case TypeUnstuck:
		if handlers.Unstuck == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Unstuck(ctx, *cmd.Unstuck)
	case TypeSync:
		if handlers.Sync == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Sync(ctx)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}
