package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

func (s *Server) displayEndpoints() {
	fmt.Fprintln(s.out, "Available endpoints:")
	fmt.Fprintln(s.out, "  GET    /health                          - Health check")
	fmt.Fprintln(s.out, "  GET    /stats                           - Server statistics")
	fmt.Fprintln(s.out, "  GET    /steps                           - Wizard step catalog")
	fmt.Fprintln(s.out, "  POST   /sessions                        - Start a need analysis")
	fmt.Fprintln(s.out, "  GET    /sessions/{id}                   - Session state")
	fmt.Fprintln(s.out, "  DELETE /sessions/{id}                   - Discard a session")
	fmt.Fprintln(s.out, "  POST   /sessions/{id}/advance           - Submit answers and go to the next step")
	fmt.Fprintln(s.out, "  POST   /sessions/{id}/retreat           - Go back one step")
	fmt.Fprintln(s.out, "  POST   /sessions/{id}/reset             - Start over")
	fmt.Fprintln(s.out, "  POST   /sessions/{id}/generate          - Generate job ad, interview guide, onboarding plan or summary")
	fmt.Fprintln(s.out, "  POST   /sessions/{id}/suggest           - Suggest skills, benefits, tasks or recruitment steps")
	fmt.Fprintln(s.out, "  GET    /sessions/{id}/artifacts/{kind}  - Download a generated document")
	fmt.Fprintln(s.out, "  GET    /sessions/{id}/stream            - Stream a generation over websocket")
	fmt.Fprintln(s.out, "  POST   /bullets                         - Extract bullet points from text")
}

func (s *Server) displayAuthInfo() {
	if s.Credentials.Enabled() {
		fmt.Fprintf(s.out, "API authentication: ENABLED (%d keys configured)\n", s.Credentials.KeyCount())
		fmt.Fprintln(s.out, "Include 'X-API-Key: <your-key>' or 'Authorization: Bearer <key or token>' in requests")
	} else {
		fmt.Fprintln(s.out, "API authentication: DISABLED (no API keys configured)")
		fmt.Fprintln(s.out, "WARNING: API endpoints are publicly accessible!")
	}
}

func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Fprintf(s.out, "Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Fprintln(s.out, "Request size limit: DISABLED")
	}
}

func (s *Server) displayRateLimitInfo() {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Fprintf(s.out, "Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Fprintln(s.out, "  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Fprintln(s.out, "  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Fprintln(s.out, "Rate limiting: DISABLED")
	}
}
