package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mono-send/send-smartly/pkg/client"
	"github.com/mono-send/send-smartly/pkg/editor"
	"github.com/mono-send/send-smartly/pkg/log"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/reconcile"
	cli "github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

var (
	errMissingWorkflowID = errors.New("workflow id argument is required")
	errMissingEmailID    = errors.New("email id argument is required")
)

func newClient(command *cli.Command) (*client.Client, error) {
	limit := rate.Limit(command.Float("rate"))

	return client.New(command.String("api-url"), client.WithRateLimit(limit, client.DefaultBurst))
}

// openSession connects to the API and selects the workflow named by the first argument.
func openSession(ctx context.Context, command *cli.Command) (*editor.Session, error) {
	id := command.Args().First()
	if id == "" {
		return nil, errMissingWorkflowID
	}

	c, err := newClient(command)
	if err != nil {
		return nil, err
	}

	logger := log.New(command.Root().ErrWriter, command.String("log-level"), "text").With("module", "editor")

	s := editor.New(ctx, c,
		editor.WithLogger(logger),
		editor.WithNotifier(editor.LogNotifier{Logger: logger}),
	)

	if err := s.Select(ctx, id); err != nil {
		s.Close()

		return nil, err
	}

	return s, nil
}

// withSession opens a session for the duration of fn.
func withSession(fn func(ctx context.Context, command *cli.Command, s *editor.Session) error) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		s, err := openSession(ctx, command)
		if err != nil {
			return err
		}
		defer s.Close()

		return fn(ctx, command, s)
	}
}

func out(command *cli.Command) io.Writer {
	return command.Root().Writer
}

func parseList(name string) (reconcile.ListKind, error) {
	switch strings.ToLower(name) {
	case "", "main":
		return reconcile.ListMain, nil
	case "merged":
		return reconcile.ListMerged, nil
	default:
		return 0, fmt.Errorf("unknown list %q (main, merged)", name)
	}
}

func parseBranch(name string) (models.Branch, error) {
	branch := models.Branch(strings.ToLower(name))
	if !branch.Valid() {
		return "", fmt.Errorf("unknown branch %q (yes, no)", name)
	}

	return branch, nil
}

func parseConditionType(name string) (models.ConditionType, error) {
	conditionType := models.ConditionType(strings.ToLower(name))
	if !conditionType.Valid() {
		return "", fmt.Errorf("unknown condition type %q", name)
	}

	return conditionType, nil
}
