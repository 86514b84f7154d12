package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshp123/omhome/internal/entity"
)

const (
	commandTimeout = 30 * time.Second
	// commandQueue bounds the commands waiting behind the one in flight.
	commandQueue = 64
)

// StatusTopic carries the retained online/offline marker.
func StatusTopic(prefix string) string {
	return prefix + "/status"
}

// StateTopic is where an entity's retained state is published.
func StateTopic(prefix string, platform entity.Platform, key string) string {
	return fmt.Sprintf("%s/%s/%s/state", prefix, platform, key)
}

// CommandTopic is where commands for an entity are accepted.
func CommandTopic(prefix string, platform entity.Platform, key string) string {
	return fmt.Sprintf("%s/%s/%s/set", prefix, platform, key)
}

// parseCommandTopic returns the entity key of a {prefix}/{platform}/{key}/set
// topic.
func parseCommandTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != "set" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Entities is the entity surface the bridge drives.
type Entities interface {
	States() []entity.State
	Do(ctx context.Context, key string, a entity.Action) error
}

// Bridge mirrors entity state to retained topics and turns messages on
// command topics into entity actions. Commands run one at a time on a worker
// in arrival order, so the MQTT router is never held up by a slow gateway.
type Bridge struct {
	conn     Conn
	entities Entities
	prefix   string
	log      *logrus.Entry

	mu   sync.Mutex
	last map[string]string

	commands  chan queuedCommand
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

type queuedCommand struct {
	key    string
	action entity.Action
}

func NewBridge(conn Conn, entities Entities, prefix string, log *logrus.Entry) *Bridge {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bridge{
		conn:     conn,
		entities: entities,
		prefix:   prefix,
		log:      log,
		last:     make(map[string]string),
		commands: make(chan queuedCommand, commandQueue),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start subscribes to command topics and publishes the current state.
func (b *Bridge) Start() error {
	b.startOnce.Do(func() { go b.runCommands() })
	if err := b.conn.Subscribe(b.prefix+"/+/+/set", b.handleCommand); err != nil {
		return fmt.Errorf("subscribe commands: %w", err)
	}
	return b.PublishStates()
}

// PublishStates publishes every entity whose state changed since the last
// call.
func (b *Bridge) PublishStates() error {
	var errs []error
	for _, state := range b.entities.States() {
		payload, err := json.Marshal(state)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		topic := StateTopic(b.prefix, state.Platform, state.Key)

		b.mu.Lock()
		unchanged := b.last[topic] == string(payload)
		b.mu.Unlock()
		if unchanged {
			continue
		}
		if err := b.conn.Publish(topic, true, payload); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", topic, err))
			continue
		}
		b.mu.Lock()
		b.last[topic] = string(payload)
		b.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Close stops the command worker after the queued commands have run. It
// does not close the connection.
func (b *Bridge) Close() {
	b.stopOnce.Do(func() { close(b.stop) })
	started := true
	b.startOnce.Do(func() { started = false })
	if started {
		<-b.done
	}
}

// handleCommand runs on the MQTT router and only queues the action.
func (b *Bridge) handleCommand(topic string, payload []byte) {
	key, ok := parseCommandTopic(b.prefix, topic)
	if !ok {
		return
	}
	log := b.log.WithField("entity", key)

	action, err := decodeAction(payload)
	if err != nil {
		log.WithError(err).Warn("ignoring malformed command")
		return
	}

	select {
	case <-b.stop:
		log.WithField("action", action.Name).Debug("bridge closed, dropping command")
		return
	default:
	}
	select {
	case b.commands <- queuedCommand{key: key, action: action}:
	default:
		log.WithField("action", action.Name).Warn("command queue full, dropping command")
	}
}

func (b *Bridge) runCommands() {
	defer close(b.done)
	for {
		select {
		case cmd := <-b.commands:
			b.runCommand(cmd)
		case <-b.stop:
			for {
				select {
				case cmd := <-b.commands:
					b.runCommand(cmd)
				default:
					return
				}
			}
		}
	}
}

func (b *Bridge) runCommand(cmd queuedCommand) {
	log := b.log.WithField("entity", cmd.key)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.entities.Do(ctx, cmd.key, cmd.action); err != nil {
		log.WithError(err).WithField("action", cmd.action.Name).Warn("command failed")
	}
	if err := b.PublishStates(); err != nil {
		log.WithError(err).Warn("state publish failed")
	}
}

// decodeAction accepts a JSON action or the bare ON/OFF/TOGGLE words many
// MQTT tools send.
func decodeAction(payload []byte) (entity.Action, error) {
	text := strings.TrimSpace(string(payload))
	switch strings.ToUpper(text) {
	case "ON":
		return entity.Action{Name: entity.ActionTurnOn}, nil
	case "OFF":
		return entity.Action{Name: entity.ActionTurnOff}, nil
	case "TOGGLE":
		return entity.Action{Name: entity.ActionToggle}, nil
	}

	var action entity.Action
	if err := json.Unmarshal([]byte(text), &action); err != nil {
		return action, err
	}
	if action.Name == "" {
		return action, errors.New("missing action")
	}
	return action, nil
}
