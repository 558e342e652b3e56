package protocol

// Well-known method names routed by the Gateway's RPC dispatcher.
// `_register` is the only method accepted before a connection has sent
// its ServiceRegistration frame (spec §6).
const (
	MethodRegister = "_register"

	MethodSessionsList    = "sessions.list"
	MethodSessionsHistory = "sessions.history"
	MethodSessionsPatch   = "sessions.patch"
	MethodSessionsDelete  = "sessions.delete"
	MethodSessionsReset   = "sessions.reset"
	MethodSessionsSend    = "sessions.send"
	MethodSessionsSpawn   = "sessions.spawn"

	MethodChatSend    = "chat.send"
	MethodChatHistory = "chat.history"
)
