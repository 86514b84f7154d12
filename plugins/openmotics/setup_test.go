package openmotics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/omhome/internal/resource"
)

type scriptedInstaller struct {
	errs  []error
	calls int
}

func (s *scriptedInstaller) Installation(context.Context) (resource.Installation, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return resource.Installation{}, err
		}
	}
	return resource.Installation{ID: 21, Name: "Home"}, nil
}

type scriptedStarter struct {
	errs  []error
	calls int
}

func (s *scriptedStarter) Start(context.Context) error {
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func quietLog() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

func fastBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 5)
}

func TestSetupRetriesUntilReady(t *testing.T) {
	installer := &scriptedInstaller{errs: []error{&ConnectionError{Op: "installations", Err: errors.New("dial")}}}
	starter := &scriptedStarter{errs: []error{&MaintenanceModeError{Op: "outputs"}}}

	inst, err := Setup(context.Background(), installer, starter, fastBackOff(), quietLog())
	require.NoError(t, err)
	assert.Equal(t, 21, inst.ID)
	assert.Equal(t, 2, installer.calls)
	assert.Equal(t, 2, starter.calls)
}

func TestSetupStopsOnRejectedCredentials(t *testing.T) {
	installer := &scriptedInstaller{}
	starter := &scriptedStarter{errs: []error{&AuthenticationError{Op: "login"}}}

	_, err := Setup(context.Background(), installer, starter, fastBackOff(), quietLog())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 1, starter.calls)
}

func TestSetupGivesUpAfterRetries(t *testing.T) {
	unreachable := &ConnectionError{Op: "installations", Err: errors.New("dial")}
	installer := &scriptedInstaller{errs: []error{unreachable, unreachable, unreachable, unreachable, unreachable, unreachable, unreachable}}

	_, err := Setup(context.Background(), installer, &scriptedStarter{}, fastBackOff(), quietLog())
	require.Error(t, err)
	assert.Equal(t, 6, installer.calls)
}
