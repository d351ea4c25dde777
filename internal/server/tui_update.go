// ABOUTME: TUI update helpers for server
// ABOUTME: Collects station state and sends it to the TUI
package server

// updateTUI sends current station state to TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}
	s.tui.Update(s.status())
}

func (s *Server) status() ServerStatus {
	status := ServerStatus{
		Name: s.config.Name,
		Port: s.config.Port,
	}
	if s.streams != nil {
		status.Listeners = s.streams.Listeners()
	}
	if s.broadcast != nil {
		buf := s.broadcast.Buffer()
		status.Pages = buf.Version()
		status.Buffered = buf.Length()
	}
	if s.station != nil {
		if track, started, ok := s.station.NowPlaying(); ok {
			status.NowPlaying = track.String()
			status.TrackStart = started
		}
	}
	return status
}
