package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mikey-austin/kodi_playlists/internal/ports"
	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

// Resolver resolves selectors to card presence.
type Resolver struct {
	Presence ports.Broker
	Config   Config
}

// ResolveCard resolves a card selector using the configured default.
// A selector may be a node id, an alias, a card id or a card name.
func (r Resolver) ResolveCard(ctx context.Context, selector string) (kp.Presence, error) {
	if selector == "" {
		selector = r.Config.DefaultCard
	}

	presence, err := r.Presence.ListPresence(ctx)
	if err != nil {
		return kp.Presence{}, WrapError(ExitRuntime, "list presence", err)
	}

	cards := filterPresenceByKind(presence, kp.KindCard)
	if selector == "" {
		if len(cards) == 1 {
			return cards[0], nil
		}
		return kp.Presence{}, &CLIError{Code: ExitUsage, Msg: "card selector required"}
	}
	return resolveSelector(selector, cards, r.Config.Aliases)
}

func filterPresenceByKind(presence []kp.Presence, kind string) []kp.Presence {
	out := make([]kp.Presence, 0, len(presence))
	for _, p := range presence {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

func resolveSelector(selector string, presence []kp.Presence, aliases map[string]string) (kp.Presence, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return kp.Presence{}, &CLIError{Code: ExitUsage, Msg: "card selector required"}
	}
	if alias, ok := aliases[selector]; ok {
		selector = alias
	}
	if strings.HasPrefix(selector, "kp:") {
		return resolveExact(selector, presence)
	}

	matches := make([]kp.Presence, 0)
	for _, p := range presence {
		if strings.EqualFold(p.Name, selector) || strings.EqualFold(kp.CardIDFromNode(p.NodeID), selector) {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return kp.Presence{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("no card matches %q", selector)}
	default:
		return kp.Presence{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("ambiguous selector %q: %s", selector, suggestionList(matches))}
	}
}

func resolveExact(nodeID string, presence []kp.Presence) (kp.Presence, error) {
	for _, p := range presence {
		if p.NodeID == nodeID {
			return p, nil
		}
	}
	return kp.Presence{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("node not found: %s", nodeID)}
}

func suggestionList(matches []kp.Presence) string {
	names := make([]string, 0, len(matches))
	for _, p := range matches {
		names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.NodeID))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
