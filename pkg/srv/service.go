package srv

import (
	"context"
	"errors"
	"time"

	"github.com/sandevgo/cnapse/pkg/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// ErrExit is returned from Start by a service that wants the whole process to
// stop cleanly, e.g. an interactive prompt after the user typed /exit.
var ErrExit = errors.New("service requested exit")

type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Run starts all services and blocks until ctx is cancelled or one of them
// stops with an error. Services are then shut down in reverse order.
func Run(ctx context.Context, services []Service) error {
	logger := log.FromCtx(ctx)
	g, gctx := errgroup.WithContext(ctx)

	for _, service := range services {
		g.Go(func() error {
			err := service.Start(gctx)
			if err != nil && !errors.Is(err, ErrExit) && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msgf("%T stopped with error", service)
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownServices(context.WithoutCancel(ctx), services)
		return nil
	})

	err := g.Wait()
	if errors.Is(err, ErrExit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func shutdownServices(ctx context.Context, services []Service) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Shutdown(ctx); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msgf("%T failed to shutdown", services[i])
		}
	}
}
