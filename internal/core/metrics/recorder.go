package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-meshrouter/pkg/types"
)

const namespace = "meshrouter"

// Recorder 路由核心的 Prometheus 指标
type Recorder struct {
	neighbours   *prometheus.GaugeVec
	onlineUsers  prometheus.Gauge
	knownUsers   prometheus.Gauge
	presence     *prometheus.CounterVec
	sent         *prometheus.CounterVec
	received     *prometheus.CounterVec
	sendErrors   *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	duplicates   prometheus.Counter
	queueDropped prometheus.Counter
	queueDepth   prometheus.Gauge
	infoRequests prometheus.Counter
	userUpdates  prometheus.Counter
	bandwidth    *BandwidthCounter
}

// NewRecorder 创建并注册指标
func NewRecorder(reg prometheus.Registerer, bw *BandwidthCounter) *Recorder {
	r := &Recorder{
		neighbours: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "neighbours",
			Help:      "Number of direct neighbours per transport",
		}, []string{"transport"}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Number of users with at least one route",
		}),
		knownUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "known_users",
			Help:      "Number of records in the user directory",
		}),
		presence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_transitions_total",
			Help:      "Offline/online transitions derived from the routing table",
		}, []string{"state"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages handed to the transport layer",
		}, []string{"module"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages accepted after decoding and signature check",
		}, []string{"module"}),
		sendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Transport send failures",
		}, []string{"transport"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound messages rejected",
		}, []string{"reason"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_messages_total",
			Help:      "Inbound messages suppressed as duplicates",
		}),
		queueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_dropped_total",
			Help:      "Outbound messages dropped because the queue was full",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Outbound messages waiting to be sent",
		}),
		infoRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "info_requests_total",
			Help:      "User info requests emitted after cooldown filtering",
		}),
		userUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_updates_applied_total",
			Help:      "User updates that changed at least one field",
		}),
		bandwidth: bw,
	}

	reg.MustRegister(
		r.neighbours,
		r.onlineUsers,
		r.knownUsers,
		r.presence,
		r.sent,
		r.received,
		r.sendErrors,
		r.decodeErrors,
		r.duplicates,
		r.queueDropped,
		r.queueDepth,
		r.infoRequests,
		r.userUpdates,
	)
	return r
}

// Handler 返回 /metrics 的 HTTP handler
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// SetNeighbours 设置某传输的邻居数
func (r *Recorder) SetNeighbours(t types.TransportModule, n int) {
	if r == nil {
		return
	}
	r.neighbours.WithLabelValues(t.String()).Set(float64(n))
}

// SetOnlineUsers 设置在线用户数
func (r *Recorder) SetOnlineUsers(n int) {
	if r == nil {
		return
	}
	r.onlineUsers.Set(float64(n))
}

// SetKnownUsers 设置目录中的用户数
func (r *Recorder) SetKnownUsers(n int) {
	if r == nil {
		return
	}
	r.knownUsers.Set(float64(n))
}

// ObservePresence 记录一次在线状态变化
func (r *Recorder) ObservePresence(online bool) {
	if r == nil {
		return
	}
	state := "offline"
	if online {
		state = "online"
	}
	r.presence.WithLabelValues(state).Inc()
}

// ObserveSent 记录一次成功发送
func (r *Recorder) ObserveSent(module string, t types.TransportModule, size int) {
	if r == nil {
		return
	}
	r.sent.WithLabelValues(module).Inc()
	if r.bandwidth != nil {
		r.bandwidth.LogSent(t, int64(size))
	}
}

// ObserveReceived 记录一条被接受的入站消息
func (r *Recorder) ObserveReceived(module string, t types.TransportModule, size int) {
	if r == nil {
		return
	}
	r.received.WithLabelValues(module).Inc()
	if r.bandwidth != nil {
		r.bandwidth.LogRecv(t, int64(size))
	}
}

// ObserveSendError 记录一次发送失败
func (r *Recorder) ObserveSendError(t types.TransportModule) {
	if r == nil {
		return
	}
	r.sendErrors.WithLabelValues(t.String()).Inc()
}

// ObserveDecodeError 记录一条被拒绝的入站消息
func (r *Recorder) ObserveDecodeError(reason string) {
	if r == nil {
		return
	}
	r.decodeErrors.WithLabelValues(reason).Inc()
}

// ObserveDuplicate 记录一条被去重的入站消息
func (r *Recorder) ObserveDuplicate() {
	if r == nil {
		return
	}
	r.duplicates.Inc()
}

// ObserveQueueDropped 记录一条因队列满而丢弃的出站消息
func (r *Recorder) ObserveQueueDropped() {
	if r == nil {
		return
	}
	r.queueDropped.Inc()
}

// SetQueueDepth 设置出站队列长度
func (r *Recorder) SetQueueDepth(n int) {
	if r == nil {
		return
	}
	r.queueDepth.Set(float64(n))
}

// ObserveInfoRequest 记录一次资料请求
func (r *Recorder) ObserveInfoRequest() {
	if r == nil {
		return
	}
	r.infoRequests.Inc()
}

// ObserveUserUpdate 记录一次生效的用户更新
func (r *Recorder) ObserveUserUpdate() {
	if r == nil {
		return
	}
	r.userUpdates.Inc()
}

// Bandwidth 返回带宽计数器（可能为 nil）
func (r *Recorder) Bandwidth() *BandwidthCounter {
	if r == nil {
		return nil
	}
	return r.bandwidth
}
