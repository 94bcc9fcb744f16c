package domain

// ConnectionState is the logical tunnel state. The allowed transitions are:
//
// disconnected -> handshaking
// handshaking  -> connected | failed | disconnected
// connected    -> disconnected
// failed       -> disconnected
//
// handshaking -> disconnected only happens when the session ends mid-handshake.
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionHandshaking  ConnectionState = "handshaking"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionFailed       ConnectionState = "failed"
)

var connectionTransitions = map[ConnectionState][]ConnectionState{
	ConnectionDisconnected: {ConnectionHandshaking},
	ConnectionHandshaking:  {ConnectionConnected, ConnectionFailed, ConnectionDisconnected},
	ConnectionConnected:    {ConnectionDisconnected},
	ConnectionFailed:       {ConnectionDisconnected},
}

func (s ConnectionState) CanTransition(to ConnectionState) bool {
	for _, allowed := range connectionTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Label is the text shown on the connect control.
func (s ConnectionState) Label() string {
	switch s {
	case ConnectionDisconnected:
		return "OFFLINE"
	case ConnectionHandshaking:
		return "HANDSHAKING"
	case ConnectionConnected:
		return "SECURE"
	case ConnectionFailed:
		return "FAILURE"
	default:
		return string(s)
	}
}

// Telemetry holds live session metrics. It is meaningful only while connected.
type Telemetry struct {
	ThroughputUnitsPerSec float64
	PingMs                int64
	TotalUsedUnits        float64
}

func (t Telemetry) IsZero() bool {
	return t == Telemetry{}
}

type ConnectionTransition struct {
	From ConnectionState
	To   ConnectionState
}
