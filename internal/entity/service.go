package entity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/joshp123/omhome/internal/resource"
)

var (
	ErrNotFound     = errors.New("entity not found")
	ErrUnsupported  = errors.New("operation not supported by entity")
	ErrInvalidValue = errors.New("invalid value")
	ErrFailed       = errors.New("command reported failure")
)

// Commander sends one command to the gateway.
type Commander interface {
	Command(ctx context.Context, cmd resource.Command) (resource.Result, error)
}

// Source is the snapshot owner, normally the coordinator.
type Source interface {
	Data() *resource.Snapshot
	Update(fn func(*resource.Snapshot) bool) bool
	Refresh(ctx context.Context) (*resource.Snapshot, error)
}

// Service exposes entity state and commands. Entities stay registered once
// seen, so a record that disappears reports as unavailable instead of
// vanishing.
type Service struct {
	commander  Commander
	source     Source
	installKey string
	log        *logrus.Entry

	mu    sync.Mutex
	known map[string]Descriptor
	order []string
}

func NewService(commander Commander, source Source, installKey string, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Service{
		commander:  commander,
		source:     source,
		installKey: installKey,
		log:        log,
		known:      make(map[string]Descriptor),
	}
	s.sync(source.Data())
	return s
}

func (s *Service) InstallKey() string { return s.installKey }

func (s *Service) sync(snap *resource.Snapshot) []Descriptor {
	current := Build(snap, s.installKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range current {
		if _, ok := s.known[d.Key]; !ok {
			s.order = append(s.order, d.Key)
		}
		s.known[d.Key] = d
	}
	out := make([]Descriptor, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.known[key])
	}
	return out
}

// States returns every registered entity in registration order.
func (s *Service) States() []State {
	snap := s.source.Data()
	descriptors := s.sync(snap)
	out := make([]State, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, StateOf(d, snap))
	}
	return out
}

// State returns one entity by key.
func (s *Service) State(key string) (State, error) {
	snap := s.source.Data()
	s.sync(snap)
	s.mu.Lock()
	d, ok := s.known[key]
	s.mu.Unlock()
	if !ok {
		return State{}, notFound(key)
	}
	return StateOf(d, snap), nil
}

// target resolves key to a registered entity of the given platform. An empty
// platform matches any.
func (s *Service) target(key string, platform Platform) (Descriptor, error) {
	s.sync(s.source.Data())
	s.mu.Lock()
	d, ok := s.known[key]
	s.mu.Unlock()
	if !ok {
		return Descriptor{}, notFound(key)
	}
	if platform != "" && d.Platform != platform {
		return d, fmt.Errorf("%s is a %s, not a %s: %w", key, d.Platform, platform, ErrUnsupported)
	}
	return d, nil
}

// available is target plus a check that the record is in the current snapshot.
func (s *Service) available(key string, platform Platform) (Descriptor, error) {
	d, err := s.target(key, platform)
	if err != nil {
		return d, err
	}
	if !StateOf(d, s.source.Data()).Available {
		return d, notFound(key)
	}
	return d, nil
}

// execute sends cmd. On success patch is applied to a copy of the snapshot
// and published without a fetch. On any failure nothing is patched, exactly
// one refresh runs, and the command error is returned.
func (s *Service) execute(ctx context.Context, cmd resource.Command, patch func(*resource.Snapshot) bool) error {
	log := s.log.WithFields(logrus.Fields{
		"command_id": uuid.NewString(),
		"command":    cmd.String(),
	})
	log.Debug("sending command")

	result, err := s.commander.Command(ctx, cmd)
	if err == nil && !result.Success {
		err = fmt.Errorf("%s: %w", result.Error, ErrFailed)
	}
	if err != nil {
		log.WithError(err).Warn("command failed, refreshing")
		if _, refreshErr := s.source.Refresh(ctx); refreshErr != nil {
			log.WithError(refreshErr).Warn("reconciling refresh incomplete")
		}
		return fmt.Errorf("%s: %w", cmd, err)
	}

	if patch != nil && !s.source.Update(patch) {
		log.Debug("record gone before patch")
	}
	return nil
}

func notFound(key string) error {
	return fmt.Errorf("%s: %w", key, ErrNotFound)
}

func unsupported(d Descriptor, op string) error {
	return fmt.Errorf("%s %s: %w", d.Key, op, ErrUnsupported)
}
