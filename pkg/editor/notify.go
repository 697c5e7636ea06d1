package editor

import (
	"context"
	"log/slog"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a non-blocking message for the user.
type Notification struct {
	Level   Level
	Op      Operation
	Message string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo

	switch n.Level {
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}

	l.Logger.Log(ctx, level, n.Message, "operation", string(n.Op), "level", string(n.Level))
}

var failureMessages = map[Operation]string{
	OpLoad:              "Failed to load workflows",
	OpSelect:            "Failed to load workflow",
	OpLookups:           "Failed to load selector options",
	OpSetTriggerSegment: "Failed to update trigger segment",
	OpAddEmail:          "Failed to add email",
	OpUpdateEmail:       "Failed to update email",
	OpDeleteEmail:       "Failed to delete email",
	OpReorder:           "Failed to reorder emails",
	OpAddCondition:      "Failed to add condition",
	OpRemoveCondition:   "Failed to remove condition",
	OpAddBranchEmail:    "Failed to add branch email",
	OpRemoveBranchEmail: "Failed to remove branch email",
	OpSave:              "Failed to save workflow",
	OpActivate:          "Failed to activate workflow",
}

func failureMessage(op Operation) string {
	if msg, ok := failureMessages[op]; ok {
		return msg
	}

	return "Something went wrong"
}
