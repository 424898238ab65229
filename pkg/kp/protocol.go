package kp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BaseTopic is the default MQTT topic prefix for the protocol.
const BaseTopic = "kp/v1"

// Command types understood by a card node.
const (
	CmdEntries = "card.entries"
	CmdPlay    = "card.play"
	CmdPreview = "card.preview"
	CmdSystem  = "card.system"
	CmdDebug   = "card.debug"
	CmdState   = "card.state"
	CmdReload  = "card.reload"
)

// Reply error codes.
const (
	CodeInvalid     = "INVALID"
	CodeNotFound    = "NOT_FOUND"
	CodeConflict    = "CONFLICT"
	CodeUnavailable = "UNAVAILABLE"
)

// KindCard is the presence kind published by card nodes.
const KindCard = "card"

// CommandEnvelope is the common controller command envelope for MQTT.
type CommandEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	TS      int64           `json:"ts"`
	From    string          `json:"from"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Body    json.RawMessage `json:"body"`
}

// ReplyEnvelope is the response envelope for commands.
type ReplyEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	OK   bool            `json:"ok"`
	TS   int64           `json:"ts"`
	Body json.RawMessage `json:"body,omitempty"`
	Err  *ReplyError     `json:"err,omitempty"`
}

// ReplyError describes an error response.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Presence describes a node presence payload.
type Presence struct {
	NodeID string         `json:"nodeId"`
	Kind   string         `json:"kind"`
	Name   string         `json:"name"`
	Caps   map[string]any `json:"caps,omitempty"`
	TS     int64          `json:"ts"`
}

// CardState captures the retained state of a card.
type CardState struct {
	Title      string `json:"title"`
	Entity     string `json:"entity"`
	State      string `json:"state"`
	NowPlaying string `json:"nowPlaying,omitempty"`
	Hint       string `json:"hint,omitempty"`
	Entries    int    `json:"entries"`
	Debug      bool   `json:"debug,omitempty"`
	TS         int64  `json:"ts"`
}

// Event is a notification published on the events topic.
type Event struct {
	Type    string `json:"type"`
	TS      int64  `json:"ts"`
	Message string `json:"message"`
	Error   bool   `json:"error,omitempty"`
}

// EventNotification is the type of notification events.
const EventNotification = "card.notification"

// NewCommand builds a command envelope with a JSON body.
func NewCommand(cmdType string, body any) (CommandEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return CommandEnvelope{}, fmt.Errorf("marshal body: %w", err)
	}

	return CommandEnvelope{
		Type: cmdType,
		Body: payload,
	}, nil
}

// ValidateCommandEnvelope validates required fields.
func ValidateCommandEnvelope(cmd CommandEnvelope) error {
	if strings.TrimSpace(cmd.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return errors.New("type is required")
	}
	if cmd.TS <= 0 {
		return errors.New("ts must be a positive unix timestamp")
	}
	if strings.TrimSpace(cmd.From) == "" {
		return errors.New("from is required")
	}
	if len(cmd.Body) == 0 {
		return errors.New("body is required")
	}
	if !json.Valid(cmd.Body) {
		return errors.New("body must be valid json")
	}
	return nil
}

// CommandMutates reports whether a command acts on the device.
func CommandMutates(cmdType string) bool {
	switch cmdType {
	case CmdPlay, CmdSystem, CmdReload:
		return true
	default:
		return false
	}
}

// TopicPresence builds the presence topic for a node.
func TopicPresence(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/presence", topicBase, nodeID)
}

// TopicState builds the state topic for a node.
func TopicState(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/state", topicBase, nodeID)
}

// TopicCommands builds the command topic for a node.
func TopicCommands(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/cmd", topicBase, nodeID)
}

// TopicEvents builds the events topic for a node.
func TopicEvents(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/evt", topicBase, nodeID)
}

// TopicReply builds the reply topic for a controller instance.
func TopicReply(topicBase, controllerID string) string {
	return fmt.Sprintf("%s/reply/%s", topicBase, controllerID)
}

// TopicPresenceAll matches the presence topic of every node.
func TopicPresenceAll(topicBase string) string {
	return fmt.Sprintf("%s/node/+/presence", topicBase)
}

// CardNodeID returns the node id a card is published under.
func CardNodeID(cardID string) string {
	return "kp:card:" + cardID
}

// CardIDFromNode reverses CardNodeID. Other ids are returned unchanged.
func CardIDFromNode(nodeID string) string {
	return strings.TrimPrefix(nodeID, "kp:card:")
}
