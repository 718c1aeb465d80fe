package topics

const (
	// Ledger
	LedgerCommands      = "ledger_commands"
	LedgerNotifications = "ledger_notifications"

	// DLQs
	LedgerCommandsDLQ = "ledger_commands_dlq"

	// Redis Pub/Sub
	NotificationsBroadcast = "ledger_notifications_broadcast"
)
