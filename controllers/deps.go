package controllers

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/fabmarket-api/config"
	"github.com/kendall-kelly/fabmarket-api/jobs"
	"github.com/kendall-kelly/fabmarket-api/logger"
	"github.com/kendall-kelly/fabmarket-api/services"
	"go.opentelemetry.io/otel/trace"
)

// Dependencies shared by the handlers; main wires them at startup and tests
// replace them.
var (
	depsMu         sync.RWMutex
	baseLog                                = logger.Nop()
	paymentGateway services.PaymentGateway = services.NewSimulatedGateway("valid_dummy_token")
	queueOptions   []jobs.QueueOption
)

// SetLogger sets the logger handlers report through
func SetLogger(l *logger.Logger) {
	depsMu.Lock()
	defer depsMu.Unlock()
	if l == nil {
		l = logger.Nop()
	}
	baseLog = l
}

// SetPaymentGateway replaces the gateway used by the payment endpoint
func SetPaymentGateway(g services.PaymentGateway) {
	depsMu.Lock()
	defer depsMu.Unlock()
	paymentGateway = g
}

// SetQueueOptions configures the analysis queue designs are enqueued on
func SetQueueOptions(opts ...jobs.QueueOption) {
	depsMu.Lock()
	defer depsMu.Unlock()
	queueOptions = opts
}

func handlerLog() *logger.Logger {
	depsMu.RLock()
	defer depsMu.RUnlock()
	return baseLog
}

// requestLog tags handler output with the request's trace id when one is recorded
func requestLog(c *gin.Context) *logger.Logger {
	log := handlerLog()
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return log.With("trace_id", sc.TraceID().String())
	}
	return log
}

func quoteService() *services.QuoteService {
	return services.NewQuoteService(config.GetDB(), services.GetEventBus(), handlerLog())
}

func orderService() *services.OrderService {
	depsMu.RLock()
	gw := paymentGateway
	depsMu.RUnlock()
	return services.NewOrderService(config.GetDB(), gw, services.GetEventBus(), handlerLog())
}

func reviewService() *services.ReviewService {
	return services.NewReviewService(config.GetDB(), services.GetEventBus(), handlerLog())
}

func analysisQueue() *jobs.Queue {
	depsMu.RLock()
	opts := queueOptions
	depsMu.RUnlock()
	return jobs.NewQueue(config.GetDB(), opts...)
}
