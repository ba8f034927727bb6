package monitor

// Summary is a dumb data point computed from a History of outcomes.
type Summary struct {
	PacketsSent   int     // number of probes sent since the last clear
	PacketsLost   int     // number of probes timed out since the last clear
	MaxLostInRow  int     // longest run of consecutive timeouts
	RecentSent    int     // probes covered by the recent window
	RecentLost    int     // timeouts within the recent window
	RecentLossPct float64 // loss in percent within the recent window
}

// LossPct returns the packet loss in percent.
func (s *Summary) LossPct() float64 {
	if s.PacketsSent == 0 {
		return 0
	}
	return float64(s.PacketsLost) / float64(s.PacketsSent) * 100
}
