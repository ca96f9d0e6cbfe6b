package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	Internal        Category = "Internal"
	Messaging       Category = "Messaging"
	Mongo           Category = "Mongo"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	ExternalService SubCategory = "ExternalService"

	// Messaging
	Publish    SubCategory = "Publish"
	Consume    SubCategory = "Consume"
	Dispatch   SubCategory = "Dispatch"
	Retry      SubCategory = "Retry"
	DeadLetter SubCategory = "DeadLetter"

	// Mongo
	Insert SubCategory = "Insert"
	Query  SubCategory = "Query"
)

const (
	AppName       ExtraKey = "AppName"
	LoggerName    ExtraKey = "Logger"
	Queue         ExtraKey = "Queue"
	Exchange      ExtraKey = "Exchange"
	EventName     ExtraKey = "EventName"
	Operation     ExtraKey = "Operation"
	CorrelationID ExtraKey = "CorrelationId"
	Attempt       ExtraKey = "Attempt"
	EntityID      ExtraKey = "EntityId"
	Method        ExtraKey = "Method"
	StatusCode    ExtraKey = "StatusCode"
	Path          ExtraKey = "Path"
	Latency       ExtraKey = "Latency"
	ErrorMessage  ExtraKey = "ErrorMessage"
)
