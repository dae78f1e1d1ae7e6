package notify

import (
	"context"
	"errors"
)

type multiNotifier []Notifier

// Multi delivers every notice to all notifiers and joins their errors.
func Multi(notifiers ...Notifier) Notifier {
	return multiNotifier(notifiers)
}

func (m multiNotifier) OnCredited(ctx context.Context, c CreditNotice) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.OnCredited(ctx, c))
	}
	return errors.Join(errs...)
}

func (m multiNotifier) OnBlocked(ctx context.Context, b BlockNotice) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.OnBlocked(ctx, b))
	}
	return errors.Join(errs...)
}

func (m multiNotifier) OnWelcome(ctx context.Context, w WelcomeNotice) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.OnWelcome(ctx, w))
	}
	return errors.Join(errs...)
}
