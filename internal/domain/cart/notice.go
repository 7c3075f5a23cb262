package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Level is the severity of a Notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is a short user-facing message describing the outcome of an
// operation, rendered by the presentation layer as a dismissable toast.
type Notice struct {
	Level       Level
	Title       string
	Description string
}

// Notifier receives notices emitted by a Manager.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notice)

// Notify calls f(ctx, n).
func (f NotifierFunc) Notify(ctx context.Context, n Notice) {
	f(ctx, n)
}

// LogNotifier writes notices to the logger carried by the context.
type LogNotifier struct{}

// Notify logs n at a level matching its severity.
func (LogNotifier) Notify(ctx context.Context, n Notice) {
	lg := zctx.From(ctx)
	fields := []zap.Field{
		zap.String("title", n.Title),
		zap.String("description", n.Description),
	}
	if n.Level == LevelError {
		lg.Warn("Cart notice", fields...)
		return
	}
	lg.Debug("Cart notice", fields...)
}

func addedNotice(name string) Notice {
	return Notice{
		Level:       LevelInfo,
		Title:       "Added to cart",
		Description: fmt.Sprintf("%s has been added to your cart", name),
	}
}

var (
	updatedNotice = Notice{Level: LevelInfo, Title: "Cart updated", Description: "Item quantity has been updated"}
	removedNotice = Notice{Level: LevelInfo, Title: "Item removed", Description: "Item has been removed from your cart"}
)

// FailureNotice returns the notice shown to the user when op fails with err.
func FailureNotice(op Op, err error) Notice {
	switch {
	case errors.Is(err, ErrAuthRequired):
		desc := "Please sign in to manage your cart"
		if op == OpAdd {
			desc = "Please sign in to add items to your cart"
		}
		return Notice{Level: LevelError, Title: "Authentication required", Description: desc}
	case errors.Is(err, ErrInvalidQuantity):
		return Notice{Level: LevelError, Title: "Invalid quantity", Description: "Quantity must be between 1 and 2147483647"}
	case errors.Is(err, ErrLineNotFound):
		return Notice{Level: LevelError, Title: "Item not found", Description: "This item is no longer in your cart"}
	}

	switch op {
	case OpLoad:
		return Notice{Level: LevelError, Title: "Error fetching cart", Description: "Unable to load your cart items"}
	case OpAdd:
		return Notice{Level: LevelError, Title: "Error adding to cart", Description: "Unable to add item to your cart"}
	case OpUpdate:
		return Notice{Level: LevelError, Title: "Error updating cart", Description: "Unable to update item quantity"}
	case OpRemove:
		return Notice{Level: LevelError, Title: "Error removing item", Description: "Unable to remove item from your cart"}
	case OpClear:
		return Notice{Level: LevelError, Title: "Error clearing cart", Description: "Unable to clear your cart"}
	default:
		return Notice{Level: LevelError, Title: "Cart error", Description: "Something went wrong with your cart"}
	}
}
