package messaging

const (
	OrganizationsQueue = "organizations"
	UsersQueue         = "users"
	StoresQueue        = "stores"
	DeadLetterQueue    = "dead_letter_queue"
)

const (
	// CommandsExchange routes commands and queries to exactly one service
	// queue by event name.
	CommandsExchange = "commands"

	// EventsExchange fans lifecycle events out to any queue that bound the
	// event name.
	EventsExchange = "platform.events"

	DeadLetterExchange = "dlx"
)

// AttemptsHeader counts redeliveries of a message through the retry path.
const AttemptsHeader = "x-attempts"
