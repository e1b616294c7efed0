package handlers

// HandlerTransport groups the handlers wired into the two servers.
type HandlerTransport struct {
	ChatHandler  *ChatHandler
	AdminHandler *AdminHandler
}
