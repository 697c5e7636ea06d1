package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mono-send/send-smartly/pkg/client"
	"github.com/mono-send/send-smartly/pkg/editor"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/reconcile"
	cli "github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List workflows",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page", Value: 1},
			&cli.IntFlag{Name: "page-size", Value: 20},
			&cli.StringFlag{Name: "status", Usage: "draft, active, paused or archived"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			c, err := newClient(command)
			if err != nil {
				return err
			}

			list, err := c.ListWorkflows(ctx, client.ListOptions{
				Page:     command.Int("page"),
				PageSize: command.Int("page-size"),
				Status:   models.WorkflowStatus(command.String("status")),
			})
			if err != nil {
				return err
			}

			return renderList(out(command), list)
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a workflow as the editor lays it out",
		ArgsUsage: "<workflow-id>",
		Action: withSession(func(ctx context.Context, command *cli.Command, s *editor.Session) error {
			if _, err := s.Lookups(ctx); err != nil {
				return err
			}

			return renderWorkflow(out(command), s)
		}),
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a draft workflow",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "segment", Usage: "Trigger segment id"},
			&cli.StringFlag{Name: "unsubscribe-category", Usage: "Unsubscribe category id"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			c, err := newClient(command)
			if err != nil {
				return err
			}

			req := models.CreateWorkflowRequest{Name: command.String("name")}
			if segment := command.String("segment"); segment != "" {
				req.TriggerSegmentID = &segment
			}

			if category := command.String("unsubscribe-category"); category != "" {
				req.UnsubscribeCategoryID = &category
			}

			workflow, err := c.CreateWorkflow(ctx, req)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(out(command), workflow.ID)

			return err
		},
	}
}

func lookupsCommand() *cli.Command {
	return &cli.Command{
		Name:  "lookups",
		Usage: "List segments, unsubscribe categories, senders and templates",
		Action: func(ctx context.Context, command *cli.Command) error {
			c, err := newClient(command)
			if err != nil {
				return err
			}

			s := editor.New(ctx, c)
			defer s.Close()

			lookups, err := s.Lookups(ctx)
			if err != nil {
				return err
			}

			return renderLookups(out(command), lookups)
		},
	}
}

func emailFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "sender", Usage: "Sender id"},
		&cli.StringFlag{Name: "template", Usage: "Template id"},
		&cli.StringFlag{Name: "subject"},
		&cli.StringFlag{Name: "content"},
		&cli.IntFlag{Name: "wait", Usage: "Delay before the email; none when 0"},
		&cli.StringFlag{Name: "unit", Value: string(models.WaitUnitDay), Usage: "min, hour or day"},
	}
}

func emailForm(command *cli.Command) models.EmailForm {
	return models.EmailForm{
		SenderID:   command.String("sender"),
		TemplateID: command.String("template"),
		Subject:    command.String("subject"),
		Content:    command.String("content"),
		WaitTime:   command.Int("wait"),
		WaitUnit:   models.WaitUnit(command.String("unit")),
	}
}

func addEmailCommand() *cli.Command {
	return &cli.Command{
		Name:      "add-email",
		Usage:     "Append an email to the main or merged path, or into a condition branch",
		ArgsUsage: "<workflow-id>",
		Flags: append(emailFlags(),
			&cli.StringFlag{Name: "list", Value: "main", Usage: "main or merged"},
			&cli.StringFlag{Name: "branch", Usage: "yes or no; places the email in that branch"},
		),
		Action: withSession(func(ctx context.Context, command *cli.Command, s *editor.Session) error {
			form := emailForm(command)

			if name := command.String("branch"); name != "" {
				branch, err := parseBranch(name)
				if err != nil {
					return err
				}

				return s.AddBranchEmail(ctx, branch, form)
			}

			list, err := parseList(command.String("list"))
			if err != nil {
				return err
			}

			if list == reconcile.ListMerged {
				return s.AddMergedEmail(ctx, form)
			}

			return s.AddEmail(ctx, form)
		}),
	}
}

func deleteEmailCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete-email",
		Usage:     "Delete an email and the wait in front of it",
		ArgsUsage: "<workflow-id> <email-id>",
		Action: withSession(func(ctx context.Context, command *cli.Command, s *editor.Session) error {
			emailID := command.Args().Get(1)
			if emailID == "" {
				return errMissingEmailID
			}

			return s.DeleteEmail(ctx, emailID)
		}),
	}
}

func updateEmailCommand() *cli.Command {
	return &cli.Command{
		Name:      "update-email",
		Usage:     "Replace an email's content and the wait in front of it",
		ArgsUsage: "<workflow-id> <email-id>",
		Flags:     emailFlags(),
		Action: withSession(func(ctx context.Context, command *cli.Command, s *editor.Session) error {
			emailID := command.Args().Get(1)
			if emailID == "" {
				return errMissingEmailID
			}

			return s.UpdateEmail(ctx, emailID, emailForm(command))
		}),
	}
}

func setSegmentCommand() *cli.Command {
	return &cli.Command{
		Name:      "set-segment",
		Usage:     "Change the trigger segment; sent right away",
		ArgsUsage: "<workflow-id> <segment-id>",
		Action: withSession(func(ctx context.Context, command *cli.Command, s *editor.Session) error {
			segmentID := command.Args().Get(1)
			if segmentID == "" {
				return errors.New("segment id argument is required")
			}

			return s.SetTriggerSegment(ctx, segmentID)
		}),
	}
}

func addConditionCommand() *cli.Command {
	return &cli.Command{
		Name:      "add-condition",
		Usage:     "Fork the workflow on how a main path email was received",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Value: string(models.ConditionOpened), Usage: "opened, clicked, not_opened or not_clicked"},
			&cli.StringFlag{Name: "evaluates", Usage: "Email id; the last main path email when empty"},
		},
		Action: withSession(func(ctx context.Context, command *cli.Command, s *editor.Session) error {
			conditionType, err := parseConditionType(command.String("type"))
			if err != nil {
				return err
			}

			return s.AddCondition(ctx, conditionType, command.String("evaluates"))
		}),
	}
}

func removeConditionCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove-condition",
		Usage:     "Delete the condition together with both branches",
		ArgsUsage: "<workflow-id>",
		Action: withSession(func(ctx context.Context, _ *cli.Command, s *editor.Session) error {
			return s.RemoveCondition(ctx)
		}),
	}
}

func removeBranchEmailCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove-branch-email",
		Usage:     "Delete the email in one condition branch",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "branch", Required: true, Usage: "yes or no"},
		},
		Action: withSession(func(ctx context.Context, command *cli.Command, s *editor.Session) error {
			branch, err := parseBranch(command.String("branch"))
			if err != nil {
				return err
			}

			return s.RemoveBranchEmail(ctx, branch)
		}),
	}
}

func reorderCommand() *cli.Command {
	return &cli.Command{
		Name:      "reorder",
		Usage:     "Move an email within its list",
		ArgsUsage: "<workflow-id> <from> <to>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "list", Value: "main", Usage: "main or merged"},
		},
		Action: withSession(func(ctx context.Context, command *cli.Command, s *editor.Session) error {
			list, err := parseList(command.String("list"))
			if err != nil {
				return err
			}

			from, err := strconv.Atoi(command.Args().Get(1))
			if err != nil {
				return fmt.Errorf("invalid from index: %w", err)
			}

			to, err := strconv.Atoi(command.Args().Get(2))
			if err != nil {
				return fmt.Errorf("invalid to index: %w", err)
			}

			return s.Reorder(ctx, list, from, to)
		}),
	}
}

func saveCommand() *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "Store the draft as a new version",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Rename before saving"},
			&cli.StringFlag{Name: "segment", Usage: "Trigger segment id"},
			&cli.StringFlag{Name: "unsubscribe-category", Usage: "Unsubscribe category id; cleared when empty"},
			&cli.BoolFlag{Name: "track-opens"},
			&cli.BoolFlag{Name: "track-clicks"},
			&cli.StringFlag{Name: "exit", Usage: "completed or removed"},
		},
		Action: withSession(func(ctx context.Context, command *cli.Command, s *editor.Session) error {
			if err := stageSettings(ctx, command, s); err != nil {
				return err
			}

			if err := s.Save(ctx); err != nil {
				return err
			}

			_, err := fmt.Fprintf(out(command), "saved version %d\n", s.Workflow().DraftVersion)

			return err
		}),
	}
}

// stageSettings applies the settings flags that were given; the rest keep the
// workflow's current values.
func stageSettings(ctx context.Context, command *cli.Command, s *editor.Session) error {
	s.Rename(command.String("name"))

	if command.IsSet("segment") {
		if err := s.SetTriggerSegment(ctx, command.String("segment")); err != nil {
			return err
		}
	}

	if command.IsSet("unsubscribe-category") {
		s.SetUnsubscribeCategory(command.String("unsubscribe-category"))
	}

	if command.IsSet("track-opens") || command.IsSet("track-clicks") {
		current := s.Settings()

		opens, clicks := current.TrackOpens, current.TrackClicks
		if command.IsSet("track-opens") {
			opens = command.Bool("track-opens")
		}

		if command.IsSet("track-clicks") {
			clicks = command.Bool("track-clicks")
		}

		s.SetTracking(opens, clicks)
	}

	if command.IsSet("exit") {
		exit := editor.ExitCondition(strings.ToLower(command.String("exit")))
		if !exit.Valid() {
			return fmt.Errorf("unknown exit condition %q (completed, removed)", command.String("exit"))
		}

		if err := s.SetExitCondition(exit); err != nil {
			return err
		}
	}

	return nil
}

func activateCommand() *cli.Command {
	return &cli.Command{
		Name:      "activate",
		Usage:     "Save the draft and activate the new version",
		ArgsUsage: "<workflow-id>",
		Action: withSession(func(ctx context.Context, command *cli.Command, s *editor.Session) error {
			if err := s.Activate(ctx); err != nil {
				return err
			}

			_, err := fmt.Fprintf(out(command), "activated version %d\n", models.IntValue(s.Workflow().ActiveVersion))

			return err
		}),
	}
}

func versionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "versions",
		Usage:     "List saved versions of a workflow",
		ArgsUsage: "<workflow-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			id := command.Args().First()
			if id == "" {
				return errMissingWorkflowID
			}

			c, err := newClient(command)
			if err != nil {
				return err
			}

			versions, err := c.ListVersions(ctx, id)
			if err != nil {
				return err
			}

			return renderVersions(out(command), versions)
		},
	}
}
