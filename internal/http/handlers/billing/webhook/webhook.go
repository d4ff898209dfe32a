// Package webhook реализует HTTP-обработчик событий платёжного провайдера.
//
// Handler проверяет подпись события, извлекает данные подписки и передаёт
// нормализованное событие сервису сверки. События, которые сервис не
// обрабатывает, подтверждаются статусом 200, чтобы провайдер не повторял
// доставку бесконечно.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/stripe/stripe-go/v79"
	stripewebhook "github.com/stripe/stripe-go/v79/webhook"

	"github.com/magabrotheeeer/agent-marketplace/internal/http/response"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/sl"
	reconcileservice "github.com/magabrotheeeer/agent-marketplace/internal/services/reconcile"
)

// Провайдер подписывает тело запроса целиком, поэтому размер ограничен.
const maxBodyBytes = int64(65536)

// Handler управляет HTTP-запросами с событиями платёжного провайдера.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string
}

// Service описывает интерфейс сервиса сверки подписок.
type Service interface {
	ApplyEvent(ctx context.Context, ev reconcileservice.Event) (bool, error)
}

// New создает новый Handler с переданными логгером, сервисом и секретом подписи.
func New(log *slog.Logger, service Service, webhookSecret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: webhookSecret,
	}
}

// ServeHTTP godoc
// @Summary Webhook платёжного провайдера
// @Description Принимает подписанные события подписок и сверяет локальное состояние. Необрабатываемые события подтверждаются.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Success 200 {object} response.Response "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Неверная подпись или тело события"
// @Failure 500 {object} response.ErrorResponse "Ошибка сверки"
// @Router /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid payload"))
		return
	}

	event, err := stripewebhook.ConstructEventWithOptions(
		body,
		r.Header.Get("Stripe-Signature"),
		h.webhookSecret,
		stripewebhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		log.Error("webhook signature verification failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("signature verification failed"))
		return
	}

	switch event.Type {
	case reconcileservice.EventSubscriptionCreated,
		reconcileservice.EventSubscriptionUpdated,
		reconcileservice.EventSubscriptionDeleted:
	default:
		log.Info("unhandled event type acknowledged", slog.String("type", string(event.Type)))
		render.JSON(w, r, response.OK())
		return
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		log.Error("failed to unmarshal subscription payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid subscription payload"))
		return
	}

	ev := reconcileservice.Event{
		Type:              string(event.Type),
		SubscriptionRef:   sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		StartedAt:         time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:  time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}
	if sub.Customer != nil {
		ev.CustomerRef = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		ev.PriceRef = sub.Items.Data[0].Price.ID
	}
	if sub.CanceledAt > 0 {
		canceledAt := time.Unix(sub.CanceledAt, 0).UTC()
		ev.CanceledAt = &canceledAt
	}

	applied, err := h.service.ApplyEvent(r.Context(), ev)
	if err != nil {
		log.Error("failed to apply provider event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not apply event"))
		return
	}

	log.Info("provider event processed",
		slog.String("type", string(event.Type)),
		slog.Bool("applied", applied))
	render.JSON(w, r, response.OK())
}
