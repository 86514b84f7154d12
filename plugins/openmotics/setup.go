package openmotics

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"

	"github.com/joshp123/omhome/internal/resource"
)

// Installer resolves the installation a gateway connection serves.
type Installer interface {
	Installation(ctx context.Context) (resource.Installation, error)
}

// Starter runs the first refresh and starts polling.
type Starter interface {
	Start(ctx context.Context) error
}

// SetupBackOff is the retry schedule used while the gateway is not ready.
func SetupBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Second
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = 0
	return b
}

// Setup resolves the installation and starts the coordinator, retrying until
// both succeed or ctx ends. Rejected credentials stop the retries at once.
func Setup(ctx context.Context, installer Installer, starter Starter, b backoff.BackOff, log *logrus.Entry) (resource.Installation, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	var (
		inst     resource.Installation
		resolved bool
	)
	op := func() error {
		if !resolved {
			found, err := installer.Installation(ctx)
			if err != nil {
				return classify(err)
			}
			inst, resolved = found, true
			log.WithFields(logrus.Fields{
				"installation_id": inst.ID,
				"installation":    inst.Name,
			}).Info("installation resolved")
		}
		return classify(starter.Start(ctx))
	}
	notify := func(err error, wait time.Duration) {
		log.WithError(err).WithField("retry_in", wait.String()).Warn("gateway not ready")
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return inst, err
	}
	return inst, nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsAuthError(err) {
		return backoff.Permanent(err)
	}
	return err
}
