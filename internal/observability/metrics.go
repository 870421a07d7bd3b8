package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	grpcServerHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_server_handled_total",
			Help: "Total number of gRPC requests handled by the server.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	chatsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_chats_created_total",
			Help: "Total number of two-party chats created.",
		},
	)
	chatCreateConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_chat_create_conflicts_total",
			Help: "Concurrent chat creations that lost the pair-key race and re-read the winner.",
		},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total number of messages stored, by kind.",
		},
		[]string{"kind"},
	)
	messagesMarkedReadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_marked_read_total",
			Help: "Total number of messages that transitioned to read.",
		},
	)
	attachmentUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_attachment_uploads_total",
			Help: "Attachment ingestion attempts by outcome.",
		},
		[]string{"outcome"},
	)
	attachmentCleanupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_attachment_cleanups_total",
			Help: "Compensating deletes of orphaned attachment objects by outcome.",
		},
		[]string{"outcome"},
	)
	attachmentSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_attachment_size_bytes",
			Help:    "Size of stored attachments in bytes.",
			Buckets: prometheus.ExponentialBuckets(1<<10, 4, 8),
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcServerHandledTotal,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
		chatsCreatedTotal,
		chatCreateConflictsTotal,
		messagesSentTotal,
		messagesMarkedReadTotal,
		attachmentUploadsTotal,
		attachmentCleanupsTotal,
		attachmentSizeBytes,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		statusInfo := status.Convert(err)
		service, method := splitFullMethod(info.FullMethod)
		grpcServerHandledTotal.WithLabelValues(service, method, statusInfo.Code().String()).Inc()
		return resp, err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

func IncWSActive() { wsActiveConnections.Inc() }

func DecWSActive() { wsActiveConnections.Dec() }

func IncWSEvent(event string) { wsEventsTotal.WithLabelValues(event).Inc() }

func IncAMQPPublishError() { amqpPublishErrorsTotal.Inc() }

func IncChatsCreated() { chatsCreatedTotal.Inc() }

func IncChatCreateConflict() { chatCreateConflictsTotal.Inc() }

func IncMessagesSent(kind string) { messagesSentTotal.WithLabelValues(kind).Inc() }

func AddMessagesMarkedRead(n int) { messagesMarkedReadTotal.Add(float64(n)) }

func IncAttachmentUpload(outcome string) { attachmentUploadsTotal.WithLabelValues(outcome).Inc() }

func IncAttachmentCleanup(outcome string) { attachmentCleanupsTotal.WithLabelValues(outcome).Inc() }

func ObserveAttachmentSize(kind string, size int) {
	attachmentSizeBytes.WithLabelValues(kind).Observe(float64(size))
}
