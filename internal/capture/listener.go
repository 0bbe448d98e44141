package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smartqasa/scene-capture/internal/infrastructure/mqtt"
)

// Services accepted on the MQTT command surface.
const (
	ServiceUpdate      = "update"
	ServiceSceneUpdate = "scene_update"
	ServiceSceneGet    = "scene_get"
)

// commandTimeout bounds a single MQTT-triggered capture, covering the worst
// case of every entity exhausting its retry schedule.
const commandTimeout = 60 * time.Second

// MQTTClient is the broker surface the listener needs. Implemented by the
// infrastructure MQTT client; tests substitute an in-memory double.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// commandPayload is the body of a service command message.
type commandPayload struct {
	EntityID string `json:"entity_id"`
}

// resultPayload is the body published to the result topic.
type resultPayload struct {
	Service  string   `json:"service"`
	EntityID string   `json:"entity_id"`
	Result   *Result  `json:"result,omitempty"`
	Entities []string `json:"entities,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Listener bridges MQTT service commands to the capture service.
//
// It mirrors the runtime's service-call model over the broker: commands
// arrive on scenecapture/service/{update,scene_update,scene_get} with an
// entity_id payload, and the structured outcome is published to the
// matching scenecapture/result topic.
type Listener struct {
	service *Service
	client  MQTTClient
	topics  mqtt.Topics
	qos     byte
	logger  Logger
}

// NewListener creates an MQTT command listener.
func NewListener(service *Service, client MQTTClient, qos byte, logger Logger) *Listener {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Listener{
		service: service,
		client:  client,
		qos:     qos,
		logger:  logger,
	}
}

// Start subscribes to the service command wildcard. Commands run on the
// broker client's handler goroutines; ctx bounds each command, not the
// subscription itself.
func (l *Listener) Start(ctx context.Context) error {
	err := l.client.Subscribe(l.topics.AllServiceCommands(), l.qos, func(topic string, payload []byte) error {
		l.handleCommand(ctx, topic, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to service commands: %w", err)
	}

	l.logger.Info("MQTT service listener started",
		"topic", l.topics.AllServiceCommands(),
	)
	return nil
}

// handleCommand dispatches one service command message.
func (l *Listener) handleCommand(ctx context.Context, topic string, payload []byte) {
	service := mqtt.ServiceFromCommandTopic(topic)
	if service == "" {
		return
	}

	var cmd commandPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		l.logger.Warn("malformed service command payload",
			"topic", topic,
			"error", err,
		)
		l.publishResult(service, resultPayload{
			Service: service,
			Error:   "malformed payload: expected {\"entity_id\": \"scene.x\"}",
		})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch service {
	case ServiceUpdate, ServiceSceneUpdate:
		l.runCapture(ctx, service, cmd.EntityID)
	case ServiceSceneGet:
		l.runSceneGet(ctx, cmd.EntityID)
	default:
		l.logger.Debug("unrecognised service command", "service", service)
	}
}

func (l *Listener) runCapture(ctx context.Context, service, entityID string) {
	result, err := l.service.CaptureScene(ctx, entityID)
	if err != nil {
		l.logger.Warn("MQTT capture failed",
			"service", service,
			"entity_id", entityID,
			"error", err,
		)
		l.publishResult(service, resultPayload{
			Service:  service,
			EntityID: entityID,
			Error:    publicError(err),
		})
		return
	}

	l.publishResult(service, resultPayload{
		Service:  service,
		EntityID: entityID,
		Result:   result,
	})
}

func (l *Listener) runSceneGet(ctx context.Context, entityID string) {
	entities, err := l.service.SceneEntities(ctx, entityID)
	if err != nil {
		l.logger.Warn("MQTT scene_get failed",
			"entity_id", entityID,
			"error", err,
		)
		l.publishResult(ServiceSceneGet, resultPayload{
			Service:  ServiceSceneGet,
			EntityID: entityID,
			Error:    publicError(err),
		})
		return
	}

	l.publishResult(ServiceSceneGet, resultPayload{
		Service:  ServiceSceneGet,
		EntityID: entityID,
		Entities: entities,
	})
}

// publishResult publishes the outcome to the service's result topic.
func (l *Listener) publishResult(service string, payload resultPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		l.logger.Error("marshalling service result failed", "error", err)
		return
	}

	if err := l.client.Publish(l.topics.ServiceResult(service), data, l.qos, false); err != nil {
		l.logger.Warn("publishing service result failed",
			"service", service,
			"error", err,
		)
	}
}

// publicError maps capture errors to stable message strings for transports.
// Unknown errors collapse to a generic message so internal detail stays out
// of broker traffic.
func publicError(err error) string {
	switch {
	case errors.Is(err, ErrInvalidEntityID):
		return "entity_id must belong to the scene domain"
	case errors.Is(err, ErrEntityUnavailable):
		return "scene entity unavailable"
	case errors.Is(err, ErrSceneIDMissing):
		return "scene entity has no id attribute"
	case errors.Is(err, ErrSceneNotFound):
		return "scene not found"
	case errors.Is(err, ErrNoEntities):
		return "scene has no entities"
	case errors.Is(err, ErrMalformedDocument):
		return "scenes document is malformed"
	case errors.Is(err, context.DeadlineExceeded):
		return "capture timed out"
	default:
		return "capture failed"
	}
}
