// Package cmd implements the export, import and clean commands on top of
// the application context.
package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/espace/zotsync/internal/appcontext"
	"github.com/espace/zotsync/internal/cmd/output"
	"github.com/espace/zotsync/pkg/logging"
	"github.com/espace/zotsync/pkg/sync"
)

// stdio names standard input or output in place of a file.
const stdio = "-"

// newSyncer validates the options before the repository is opened, so a
// bad threshold or policy never touches the backend.
func newSyncer(ctx context.Context, app appcontext.Interface, opts []sync.Option) (*sync.Syncer, error) {
	if err := sync.Defaults().Apply(opts...).Validate(); err != nil {
		return nil, err
	}
	repo, err := app.Repository(ctx)
	if err != nil {
		return nil, err
	}
	return sync.New(repo, opts...)
}

// report prints the result, when there is one, and passes err through.
// A partial result is printed even when the command failed.
func report(ctx context.Context, app appcontext.Interface, w io.Writer, res *sync.Result, err error) error {
	if res != nil {
		logger := logging.FromContext(ctx)
		event := logger.Info()
		if err != nil {
			event = logger.Error().Err(err)
		}
		event.Str("state", res.State.String()).Msg(res.Summary())

		if ferr := output.FormatResult(w, output.Format(app.OutputFormat()), res); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}

// summaryWriter returns where summaries go: stderr when stdout carries data.
func summaryWriter(c *cobra.Command, dataOnStdout bool) io.Writer {
	if dataOnStdout {
		return c.ErrOrStderr()
	}
	return c.OutOrStdout()
}
