// Package viewerproto defines the JSON messages exchanged with remote
// viewers over the websocket. A viewer renders the visuals the server shows
// and hides, and may report the observer position it wants streamed.
package viewerproto

const Version = "0.1"

const (
	TypeHello    = "HELLO"
	TypePosition = "POSITION"
	TypeWelcome  = "WELCOME"
	TypeShow     = "SHOW"
	TypeHide     = "HIDE"
	TypeResync   = "RESYNC"
	TypeTick     = "TICK"
)

// Envelope is decoded first to route a client message by type.
type Envelope struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// Client -> Server. First message on the connection.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name,omitempty"`

	// Drive asks for this viewer's POSITION messages to move the observer.
	Drive bool `json:"drive,omitempty"`
}

// Client -> Server. Only honored from the driving viewer.
type PositionMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Pos             [3]float64 `json:"pos"`
}

// Server -> Client. Reply to HELLO, followed by a RESYNC.
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	Driving         bool        `json:"driving"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz   int     `json:"tick_rate_hz"`
	ChunkRadius  int     `json:"chunk_radius"`
	UnloadRadius float64 `json:"unload_radius"`
	CellSpacing  float64 `json:"cell_spacing"`
	Parent       string  `json:"parent"`
}

// Server -> Client. Makes a visual visible with the given placement. A
// visual id may be shown again after a HIDE with a new placement.
type ShowMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	ID              uint64     `json:"id"`
	Kind            string     `json:"kind"`
	Pos             [3]float64 `json:"pos"`
	// Rot is a quaternion as [w, x, y, z].
	Rot    [4]float64 `json:"rot"`
	Scale  float64    `json:"scale"`
	Parent string     `json:"parent,omitempty"`
	Style  string     `json:"style"`

	Static  bool `json:"static"`
	Shadows bool `json:"shadows"`
}

type HideMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              uint64 `json:"id"`
}

// Server -> Client. Replaces the viewer's whole visible set. Sent after
// WELCOME and whenever the viewer fell behind and messages were dropped.
type ResyncMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Visuals         []ShowMsg `json:"visuals"`
}

// Server -> Client. Sent after every engine tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Skipped         bool   `json:"skipped,omitempty"`
	Reason          string `json:"reason,omitempty"`

	Generated       int `json:"generated"`
	Decorated       int `json:"decorated"`
	Evicted         int `json:"evicted"`
	LiveCells       int `json:"live_cells"`
	LiveDecorations int `json:"live_decorations"`
}
