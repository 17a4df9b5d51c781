package app

// registerRoutes sets up all HTTP handlers for the relay.
func (a *App) registerRoutes() {
	a.Mux.HandleFunc("/ws", a.hub.handleWS)

	a.Mux.HandleFunc("GET /api/latest", a.handleLatest)
	a.Mux.HandleFunc("GET /api/records", a.handleRecords)
	a.Mux.HandleFunc("POST /api/command", a.handleCommand)
	a.Mux.HandleFunc("GET /api/link", a.handleLink)
	a.Mux.HandleFunc("POST /api/link/open", a.handleLinkOpen)
	a.Mux.HandleFunc("POST /api/link/close", a.handleLinkClose)
}
