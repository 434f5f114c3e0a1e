package net

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lcx/ticknet/config"
	"github.com/lcx/ticknet/metrics"
)

// Channel reliability classes. Only ReliableChannel is functional today;
// UnreliableChannel is accepted and currently behaves identically, so configs
// written for a future lossy mode keep loading.
const (
	ReliableChannel   = "reliable"
	UnreliableChannel = "unreliable"
)

// DefaultEvent is the tick event a Net binds to when the config names none.
const DefaultEvent = "default"

// RecvLimitConfig configures the optional receive limiter. An empty algorithm
// disables limiting.
type RecvLimitConfig struct {
	// Algorithm selects "token" (x/time/rate, drops over-limit records) or
	// "funnel" (uber ratelimit, paces without dropping).
	Algorithm string `mapstructure:"algorithm"`

	// RPS is the admitted records per second. Supports hot reload.
	RPS int `mapstructure:"rps"`

	// Burst is the token bucket burst size; ignored by the funnel algorithm.
	Burst int `mapstructure:"burst"`
}

// Validate checks the limiter settings.
func (c *RecvLimitConfig) Validate() error {
	switch c.Algorithm {
	case "", "token", "funnel":
	default:
		return fmt.Errorf("recvLimit.algorithm must be token or funnel, got %q", c.Algorithm)
	}
	if c.Algorithm != "" && c.RPS <= 0 {
		return fmt.Errorf("recvLimit.rps must be positive when limiting is enabled")
	}
	if c.Burst < 0 {
		return fmt.Errorf("recvLimit.burst must not be negative")
	}
	return nil
}

// NetConfig binds one Net facade to a channel and a tick event. Loaded through
// the config manager (viper/mapstructure) and hot-reloadable for the limiter
// and budget fields.
type NetConfig struct {
	// Channel is the reliability class used in the channel sharing key.
	Channel string `mapstructure:"channel"`

	// Event names the tick source this Net's flush hook binds to.
	Event string `mapstructure:"event"`

	// DebugMode enables per-packet debug logging on the send and query paths.
	DebugMode bool `mapstructure:"debugMode"`

	// DebugKey tags every debug line from this Net, so interleaved output
	// from several instances stays attributable.
	DebugKey string `mapstructure:"debugKey"`

	// Ratelimit caps EnqueueSend calls per tick; 0 disables the budget.
	Ratelimit int `mapstructure:"ratelimit"`

	// RecvLimit configures admission control on the receive path.
	RecvLimit RecvLimitConfig `mapstructure:"recvLimit"`
}

// DefaultNetConfig returns the config a nil NewNet argument expands to.
func DefaultNetConfig() *NetConfig {
	return &NetConfig{Channel: ReliableChannel, Event: DefaultEvent}
}

// GetName implements config.Config.
func (c *NetConfig) GetName() string { return "ticknet" }

// Validate implements config.Config.
func (c *NetConfig) Validate() error {
	switch c.Channel {
	case "", ReliableChannel, UnreliableChannel:
	default:
		return fmt.Errorf("channel must be %q or %q, got %q", ReliableChannel, UnreliableChannel, c.Channel)
	}
	if c.Ratelimit < 0 {
		return fmt.Errorf("ratelimit must not be negative")
	}
	return c.RecvLimit.Validate()
}

func (c *NetConfig) applyDefaults() {
	if c.Channel == "" {
		c.Channel = ReliableChannel
	}
	if c.Event == "" {
		c.Event = DefaultEvent
	}
}

// NetOption configures optional facade behavior.
type NetOption func(*netOptions)

type netOptions struct {
	logger *zap.Logger
	met    *metrics.BridgeMetrics
}

// WithNetLogger attaches a structured logger to the facade and its bridge.
func WithNetLogger(l *zap.Logger) NetOption {
	return func(o *netOptions) { o.logger = l }
}

// WithNetMetrics attaches prometheus collectors to the underlying bridge.
func WithNetMetrics(m *metrics.BridgeMetrics) NetOption {
	return func(o *netOptions) { o.met = m }
}

// Net binds one bridge to a (channel, event) configuration. It is the surface
// application code talks to: Send/SendTo enqueue, Query reads the current
// snapshot, Register installs the per-tick flush hook.
//
// Nets constructed with the same channel and event share the underlying
// channel through the registry; each Net still owns its own bridge and queues.
type Net struct {
	cfg    *NetConfig
	role   Role
	bridge *Bridge
	log    *zap.Logger

	tokenLimiter  *TokenRecvLimiter
	funnelLimiter *FunnelRecvLimiter
}

// NewNet opens (or shares) the channel for cfg's key and builds a bridge over
// it. A nil cfg means defaults: reliable channel, "default" event, no limits.
func NewNet(cfg *NetConfig, role Role, dir EndpointDirectory, channels *ChannelRegistry, opts ...NetOption) (*Net, error) {
	if cfg == nil {
		cfg = DefaultNetConfig()
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("net config: %w", err)
	}
	if channels == nil {
		return nil, fmt.Errorf("ticknet: nil channel registry")
	}

	ch, err := channels.Open(ChannelKey(cfg.Channel, cfg.Event))
	if err != nil {
		return nil, err
	}

	var o netOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DebugMode {
		logger = logger.With(zap.String("debugKey", cfg.DebugKey))
	}

	n := &Net{cfg: cfg, role: role, log: logger}

	bridgeOpts := []BridgeOption{
		WithLogger(logger),
		WithMetrics(o.met),
		WithSendBudget(cfg.Ratelimit),
	}
	switch cfg.RecvLimit.Algorithm {
	case "token":
		n.tokenLimiter = NewTokenRecvLimiter(cfg.RecvLimit.RPS, max(cfg.RecvLimit.Burst, 1))
		bridgeOpts = append(bridgeOpts, WithRecvLimiter(n.tokenLimiter))
	case "funnel":
		n.funnelLimiter = NewFunnelRecvLimiter(cfg.RecvLimit.RPS)
		bridgeOpts = append(bridgeOpts, WithRecvLimiter(n.funnelLimiter))
	}

	n.bridge = NewBridge(role, ch, dir, bridgeOpts...)
	return n, nil
}

// Send enqueues a packet to the default recipient: broadcast to all known
// endpoints for a host, the host for a peer. The returned SendRequest can
// redirect the packet any time before the tick's flush.
func (n *Net) Send(identifier string, data ...any) (*SendRequest, error) {
	rcpt := Broadcast()
	if n.role == RolePeer {
		rcpt = ToHost()
	}
	return n.SendTo(rcpt, identifier, data...)
}

// SendTo enqueues a packet to an explicit recipient.
func (n *Net) SendTo(rcpt RecipientSpec, identifier string, data ...any) (*SendRequest, error) {
	req, err := n.bridge.EnqueueSend(rcpt, identifier, data...)
	if err != nil {
		n.log.Warn("send rejected",
			zap.String("identifier", identifier),
			zap.String("recipient", rcpt.String()),
			zap.Error(err))
		return nil, err
	}
	if n.cfg.DebugMode {
		n.log.Debug("packet enqueued",
			zap.String("identifier", identifier),
			zap.String("recipient", rcpt.String()),
			zap.Int("values", len(data)))
	}
	return req, nil
}

// Query returns a filter view over the current snapshot, optionally
// restricted to the given identifiers.
func (n *Net) Query(identifiers ...string) QueryResult {
	return n.bridge.Query(identifiers...)
}

// Use appends a receive filter (middleware) to the bridge's chain.
func (n *Net) Use(f RecvFilter) {
	n.bridge.UseRecvFilter(f)
}

// Register installs the per-tick flush hook on the scheduler, bound to this
// Net's configured event in PhaseFlush, so the step runs after all
// application hooks of the same tick.
func (n *Net) Register(s TickScheduler) (CancelFunc, error) {
	if s == nil {
		return nil, fmt.Errorf("ticknet: nil scheduler")
	}
	return s.Schedule(n.cfg.Event, PhaseFlush, n.bridge.Step)
}

// Step advances the bridge one tick directly, for callers driving the loop
// themselves instead of through a scheduler.
func (n *Net) Step() { n.bridge.Step() }

// Bridge exposes the underlying bridge for advanced wiring.
func (n *Net) Bridge() *Bridge { return n.bridge }

// GetConfigName implements config.ChangeListener.
func (n *Net) GetConfigName() string { return n.cfg.GetName() }

// OnConfigChanged implements config.ChangeListener: the send budget and
// receive limits follow config file edits without a restart. Channel and
// event changes require a new Net and are ignored here.
func (n *Net) OnConfigChanged(name string, newCfg, _ config.Config) error {
	if name != n.cfg.GetName() {
		return nil
	}
	cfg, ok := newCfg.(*NetConfig)
	if !ok {
		return fmt.Errorf("ticknet: unexpected config type %T", newCfg)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	n.bridge.SetSendBudget(cfg.Ratelimit)
	if n.tokenLimiter != nil && cfg.RecvLimit.Algorithm == "token" {
		n.tokenLimiter.Reload(cfg.RecvLimit.RPS, max(cfg.RecvLimit.Burst, 1))
	}
	if n.funnelLimiter != nil && cfg.RecvLimit.Algorithm == "funnel" {
		n.funnelLimiter.Reload(cfg.RecvLimit.RPS)
	}
	n.log.Info("net configuration updated", zap.String("config", name))
	return nil
}
