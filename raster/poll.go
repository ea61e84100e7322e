package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"geoapis/client"

	"github.com/juju/retry"
)

const (
	stateProcessing = "processing"
	stateComplete   = "complete"
)

var errProcessing = errors.New("export is still processing")

// WaitForExport polls the exports list until the export with id completes.
func (q *KoordinatesQuery) WaitForExport(ctx context.Context, id int) (Export, error) {
	var export Export
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			var err error
			export, err = q.exportState(ctx, id)
			if err != nil {
				return err
			}
			slog.Info("export state", "id", id, "state", export.State)
			switch export.State {
			case stateComplete:
				return nil
			case stateProcessing:
				return errProcessing
			default:
				return fmt.Errorf("%w: export %d ended with state %q", ErrExportFailed, id, export.State)
			}
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, errProcessing)
		},
		NotifyFunc: func(err error, attempt int) {
			if q.opts.Verbose {
				slog.Info("export not complete, checking again", "id", id, "attempt", attempt,
					"wait", q.opts.PollInterval)
			}
		},
		Attempts: -1,
		Delay:    q.opts.PollInterval,
		Clock:    q.opts.Clock,
		Stop:     ctx.Done(),
	})
	if retry.IsRetryStopped(err) {
		return export, fmt.Errorf("stopped waiting for export %d: %w", id, ctx.Err())
	}
	if err != nil {
		slog.Warn("could not download raster", "id", id, "error", err)
		return export, err
	}
	return export, nil
}

func (q *KoordinatesQuery) exportState(ctx context.Context, id int) (Export, error) {
	var exports []Export
	if err := client.GetJSON(ctx, q.opts.HTTPClient, q.baseURL()+"/exports/", q.header(), &exports); err != nil {
		return Export{}, fmt.Errorf("failed to check export %d: %w", id, err)
	}
	for _, export := range exports {
		if export.ID == id {
			return export, nil
		}
	}
	return Export{}, fmt.Errorf("%w: export %d is not listed", ErrExportFailed, id)
}
