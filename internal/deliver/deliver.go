// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deliver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/paper-digest/internal/logger"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// Sender transmits a rendered message. *SMTPSender satisfies it.
type Sender interface {
	Send(ctx context.Context, msg Message, to []types.Subscriber) (Report, error)
}

// Mailer composes outcomes and mails them to subscribers.
type Mailer struct {
	Composer    *Composer
	Sender      Sender
	Subscribers []types.Subscriber
	Log         logger.Logger
}

// Deliver mails a digest or quiet-day notice.
func (m *Mailer) Deliver(ctx context.Context, o types.PipelineOutcome) error {
	return m.send(ctx, o)
}

// Notify mails a failure notice.
func (m *Mailer) Notify(ctx context.Context, o types.PipelineOutcome) error {
	return m.send(ctx, o)
}

func (m *Mailer) send(ctx context.Context, o types.PipelineOutcome) error {
	msg, err := m.Composer.Compose(o)
	if err != nil {
		return &Error{Op: "compose", Err: err}
	}
	logOrDiscard(m.Log).Infof("deliver: %q (%d chars) to %d subscriber(s)", msg.Subject, len(msg.HTML), len(m.Subscribers))
	_, err = m.Sender.Send(ctx, msg, m.Subscribers)
	return err
}

// Inspector replaces delivery on dry runs: it renders the outcome and
// writes it to Dir as <kind>_<date>.html.
type Inspector struct {
	Composer *Composer
	Dir      string
	Log      logger.Logger

	// Written records the paths produced, in order.
	Written []string
}

// Deliver writes a digest or quiet-day preview.
func (i *Inspector) Deliver(_ context.Context, o types.PipelineOutcome) error {
	return i.write(o)
}

// Notify writes a failure preview.
func (i *Inspector) Notify(_ context.Context, o types.PipelineOutcome) error {
	return i.write(o)
}

// PreviewPath returns where the preview for o is written.
func (i *Inspector) PreviewPath(o types.PipelineOutcome) string {
	return filepath.Join(i.Dir, fmt.Sprintf("%s_%s.html", o.Kind, o.Date))
}

func (i *Inspector) write(o types.PipelineOutcome) error {
	msg, err := i.Composer.Compose(o)
	if err != nil {
		return &Error{Op: "compose", Err: err}
	}
	if err := os.MkdirAll(i.Dir, 0o755); err != nil {
		return &Error{Op: "preview", Err: err}
	}
	path := i.PreviewPath(o)
	if err := os.WriteFile(path, []byte(msg.HTML), 0o644); err != nil {
		return &Error{Op: "preview", Err: err}
	}
	i.Written = append(i.Written, path)

	log := logOrDiscard(i.Log)
	log.Infof("deliver: dry run, not sending %q", msg.Subject)
	log.Infof("deliver: preview saved to %s (%d chars)", path, len(msg.HTML))
	return nil
}

func logOrDiscard(l logger.Logger) logger.Logger {
	if l == nil {
		return logger.Discard()
	}
	return l
}
