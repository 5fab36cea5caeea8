package handler

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"replay-service/constant"
	"replay-service/dto"
	"replay-service/service"
)

type ServiceDependencies struct {
	Replay *service.ReplayService
}

// EgressEventHandler consumes "recording ended" events relayed from the
// controller's webhook receiver. Signature verification and HTTP framing
// happened upstream; only the lifecycle transition is applied here.
func EgressEventHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var event dto.EgressEventMessage
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal egress event")
		return err
	}

	if event.Status != constant.SessionStatusStopped && event.Status != constant.SessionStatusFailed {
		zerolog.Ctx(ctx).Warn().Str("status", event.Status.String()).Msg("egress event with unexpected status, ignoring")
		return nil
	}

	zerolog.Ctx(ctx).Info().
		Str("egress_id", event.EgressId).
		Str("status", event.Status.String()).
		Msg("received egress ended event")

	return deps.Replay.HandleExternalEnded(ctx, event.EgressId, event.Status, event.ErrorMessage)
}
