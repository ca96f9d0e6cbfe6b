// Package routing holds the gateway's static operation routing table: a
// read-mostly mapping from external operation name to broker delivery target.
package routing

import (
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/emporion-io/emporion/internal/domain"
	"github.com/emporion-io/emporion/internal/infrastructure/configs"
	"github.com/emporion-io/emporion/internal/infrastructure/contracts"
	"github.com/emporion-io/emporion/internal/infrastructure/messaging"
)

// eventNamePattern is looser than the runtime's closed vocabulary on purpose:
// the gateway must be able to route to services deployed after it, knowing
// only their table entry.
var eventNamePattern = regexp.MustCompile(`^[a-z_]+\.[a-z_]+$`)

type Mode string

const (
	FireAndForget Mode = "fire_and_forget"
	RequestReply  Mode = "request_reply"
)

// Route is one entry: where an operation's event goes and how the gateway
// waits on it.
type Route struct {
	Queue    string
	Event    string
	Mode     Mode
	Required []string
	Timeout  time.Duration
}

// Table maps operation names to routes. Lookups take a snapshot pointer, so a
// Replace swaps the whole table atomically without blocking readers.
type Table struct {
	entries atomic.Pointer[map[string]Route]
}

func NewTable(entries map[string]Route) *Table {
	t := &Table{}
	t.entries.Store(&entries)
	return t
}

// FromConfig builds a table from configuration, validating every entry so a
// typoed event name or mode fails at startup.
func FromConfig(routes []configs.RouteConfig, defaultTimeout time.Duration) (*Table, error) {
	entries := make(map[string]Route, len(routes))

	for _, rc := range routes {
		if rc.Operation == "" || rc.Queue == "" {
			return nil, fmt.Errorf("route missing operation or queue: %+v", rc)
		}
		if !eventNamePattern.MatchString(rc.Event) {
			return nil, fmt.Errorf("route %s has malformed event name %q", rc.Operation, rc.Event)
		}

		mode := Mode(rc.Mode)
		switch mode {
		case FireAndForget, RequestReply:
		case "":
			mode = FireAndForget
		default:
			return nil, fmt.Errorf("route %s has invalid mode %q", rc.Operation, rc.Mode)
		}

		timeout := rc.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}

		entries[rc.Operation] = Route{
			Queue:    rc.Queue,
			Event:    rc.Event,
			Mode:     mode,
			Required: rc.Required,
			Timeout:  timeout,
		}
	}

	return NewTable(entries), nil
}

func (t *Table) Lookup(operation string) (Route, error) {
	entries := *t.entries.Load()

	route, ok := entries[operation]
	if !ok {
		return Route{}, &domain.UnknownOperationError{Operation: operation}
	}

	return route, nil
}

// Replace swaps in a new table wholesale. In-flight lookups finish against
// the snapshot they started with.
func (t *Table) Replace(entries map[string]Route) {
	t.entries.Store(&entries)
}

// Operations returns the known operation names, for diagnostics.
func (t *Table) Operations() []string {
	entries := *t.entries.Load()

	ops := make([]string, 0, len(entries))
	for op := range entries {
		ops = append(ops, op)
	}
	return ops
}

// DefaultRoutes is the built-in table covering the platform's entity
// operations. Configuration can extend or replace it without touching the
// gateway loop.
func DefaultRoutes(replyTimeout time.Duration) map[string]Route {
	return map[string]Route{
		"create_organization": {
			Queue:    messaging.OrganizationsQueue,
			Event:    contracts.CommandOrganizationCreate,
			Mode:     FireAndForget,
			Required: []string{"name"},
			Timeout:  replyTimeout,
		},
		"create_user": {
			Queue:    messaging.UsersQueue,
			Event:    contracts.CommandUserCreate,
			Mode:     FireAndForget,
			Required: []string{"email", "name", "organizationId"},
			Timeout:  replyTimeout,
		},
		"create_store": {
			Queue:    messaging.StoresQueue,
			Event:    contracts.CommandStoreCreate,
			Mode:     FireAndForget,
			Required: []string{"name", "ownerId"},
			Timeout:  replyTimeout,
		},
		"get_organization": {
			Queue:    messaging.OrganizationsQueue,
			Event:    contracts.QueryOrganizationGet,
			Mode:     RequestReply,
			Required: []string{"id"},
			Timeout:  replyTimeout,
		},
		"get_user": {
			Queue:    messaging.UsersQueue,
			Event:    contracts.QueryUserGet,
			Mode:     RequestReply,
			Required: []string{"id"},
			Timeout:  replyTimeout,
		},
		"get_store": {
			Queue:    messaging.StoresQueue,
			Event:    contracts.QueryStoreGet,
			Mode:     RequestReply,
			Required: []string{"id"},
			Timeout:  replyTimeout,
		},
	}
}
