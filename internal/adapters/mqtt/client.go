package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/mikey-austin/kodi_playlists/internal/adapters/tlsconf"
	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

// ErrTimeout is returned when no reply or state arrives in time.
var ErrTimeout = errors.New("timeout waiting for broker")

// Options configures the MQTT client.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TLS       tlsconf.Files
	TopicBase string
	Timeout   time.Duration
	// PresenceWindow is how long ListPresence collects retained messages.
	PresenceWindow time.Duration
}

// Client is an MQTT adapter implementing the Broker port.
type Client struct {
	client         paho.Client
	replyTopic     string
	topicBase      string
	timeout        time.Duration
	presenceWindow time.Duration

	mu            sync.Mutex
	replyHandlers map[string]chan kp.ReplyEnvelope
}

// NewClient creates and connects an MQTT client.
func NewClient(opts Options) (*Client, error) {
	c := newClient(opts)

	clientOpts := paho.NewClientOptions().AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetConnectTimeout(c.timeout)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetOnConnectHandler(func(client paho.Client) {
		token := client.Subscribe(c.replyTopic, 1, c.onReply)
		token.Wait()
	})
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}
	tlsConfig, err := tlsconf.Client(opts.TLS)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		clientOpts.SetTLSConfig(tlsConfig)
	}

	c.client = paho.NewClient(clientOpts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	if token := c.client.Subscribe(c.replyTopic, 1, c.onReply); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return c, nil
}

func newClient(opts Options) *Client {
	if opts.TopicBase == "" {
		opts.TopicBase = kp.BaseTopic
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.PresenceWindow == 0 {
		opts.PresenceWindow = 250 * time.Millisecond
	}
	return &Client{
		replyTopic:     kp.TopicReply(opts.TopicBase, opts.ClientID),
		topicBase:      opts.TopicBase,
		timeout:        opts.Timeout,
		presenceWindow: opts.PresenceWindow,
		replyHandlers:  map[string]chan kp.ReplyEnvelope{},
	}
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Disconnect(100)
	}
}

// ReplyTopic returns the topic used for replies.
func (c *Client) ReplyTopic() string {
	return c.replyTopic
}

// PublishCommand publishes a command and waits for a reply.
func (c *Client) PublishCommand(ctx context.Context, nodeID string, cmd kp.CommandEnvelope) (kp.ReplyEnvelope, error) {
	req, err := json.Marshal(cmd)
	if err != nil {
		return kp.ReplyEnvelope{}, fmt.Errorf("marshal command: %w", err)
	}

	replyCh := c.await(cmd.ID)
	defer c.forget(cmd.ID)

	topic := kp.TopicCommands(c.topicBase, nodeID)
	if token := c.client.Publish(topic, 1, false, req); token.Wait() && token.Error() != nil {
		return kp.ReplyEnvelope{}, token.Error()
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return kp.ReplyEnvelope{}, ctx.Err()
	case reply := <-replyCh:
		return reply, nil
	case <-timer.C:
		return kp.ReplyEnvelope{}, fmt.Errorf("%s: %w", cmd.Type, ErrTimeout)
	}
}

// ListPresence collects retained presence messages.
func (c *Client) ListPresence(ctx context.Context) ([]kp.Presence, error) {
	var lock sync.Mutex
	collect := make(map[string]kp.Presence)
	handler := func(_ paho.Client, msg paho.Message) {
		presence, ok := decodePresence(msg.Payload())
		if !ok {
			return
		}
		lock.Lock()
		collect[presence.NodeID] = presence
		lock.Unlock()
	}

	topic := kp.TopicPresenceAll(c.topicBase)
	if token := c.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	defer func() {
		token := c.client.Unsubscribe(topic)
		token.Wait()
	}()

	wait := time.NewTimer(c.presenceWindow)
	select {
	case <-ctx.Done():
		wait.Stop()
	case <-wait.C:
	}

	lock.Lock()
	defer lock.Unlock()
	out := make([]kp.Presence, 0, len(collect))
	for _, presence := range collect {
		out = append(out, presence)
	}
	return out, nil
}

// GetCardState returns the retained card state.
func (c *Client) GetCardState(ctx context.Context, nodeID string) (kp.CardState, error) {
	stateCh := make(chan kp.CardState, 1)
	handler := func(_ paho.Client, msg paho.Message) {
		var state kp.CardState
		if err := json.Unmarshal(msg.Payload(), &state); err != nil {
			return
		}
		select {
		case stateCh <- state:
		default:
		}
	}

	topic := kp.TopicState(c.topicBase, nodeID)
	if token := c.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return kp.CardState{}, token.Error()
	}
	defer func() {
		token := c.client.Unsubscribe(topic)
		token.Wait()
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return kp.CardState{}, ctx.Err()
	case state := <-stateCh:
		return state, nil
	case <-timer.C:
		return kp.CardState{}, fmt.Errorf("state of %s: %w", nodeID, ErrTimeout)
	}
}

func (c *Client) await(id string) chan kp.ReplyEnvelope {
	ch := make(chan kp.ReplyEnvelope, 1)
	c.mu.Lock()
	c.replyHandlers[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.replyHandlers, id)
	c.mu.Unlock()
}

func (c *Client) onReply(_ paho.Client, msg paho.Message) {
	c.deliver(msg.Payload())
}

func (c *Client) deliver(payload []byte) {
	var reply kp.ReplyEnvelope
	if err := json.Unmarshal(payload, &reply); err != nil {
		return
	}

	c.mu.Lock()
	ch, ok := c.replyHandlers[reply.ID]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- reply:
	default:
	}
}

// decodePresence ignores empty retained payloads, which clear presence.
func decodePresence(payload []byte) (kp.Presence, bool) {
	if len(payload) == 0 {
		return kp.Presence{}, false
	}
	var presence kp.Presence
	if err := json.Unmarshal(payload, &presence); err != nil || presence.NodeID == "" {
		return kp.Presence{}, false
	}
	return presence, true
}
