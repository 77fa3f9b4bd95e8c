// Package observerproto defines the read-only wire surface a HUD or debug
// viewer consumes. It is versioned separately from any future agent protocol.
package observerproto

// Version of the observer protocol.
const Version = "0.1"

// Message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeFrame     = "FRAME"
	TypeSurface   = "SURFACE"
)

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// SendSurface requests one SURFACE message with the loaded terrain
	// before frames start.
	SendSurface bool `json:"send_surface,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	BlockPalette    []string    `json:"block_palette"`
}

type WorldParams struct {
	TickRateHz int    `json:"tick_rate_hz"`
	ChunkSize  [3]int `json:"chunk_size"`
	SizeX      int    `json:"size_x"`
	SizeZ      int    `json:"size_z"`
	Height     int    `json:"height"`
	Seed       int64  `json:"seed"`
}

// Server -> Client. Sent every tick.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Workers []WorkerState `json:"workers"`
	Tasks   TaskCounts    `json:"tasks"`
	Board   []TaskState   `json:"board,omitempty"`
	Audits  []AuditEntry  `json:"audits,omitempty"`
}

type WorkerState struct {
	ID    uint64     `json:"id"`
	Pos   [3]float64 `json:"pos"`
	Cell  [3]int     `json:"cell"`
	State string     `json:"state"`

	TaskID     uint64 `json:"task_id,omitempty"`
	LastReason string `json:"last_reason,omitempty"`
}

type TaskCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Active     int `json:"active"`
}

type TaskState struct {
	ID             uint64 `json:"id"`
	Pos            [3]int `json:"pos"`
	Kind           string `json:"kind"`
	Status         string `json:"status"`
	Material       uint16 `json:"material,omitempty"`
	AssignedWorker uint64 `json:"assigned_worker,omitempty"`
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Worker uint64 `json:"worker"`
	Pos    [3]int `json:"pos"`
	From   uint16 `json:"from"`
	To     uint16 `json:"to"`
	Action string `json:"action"`
}

// Server -> Client, once after subscribe when SendSurface was requested.
type SurfaceMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Tick            uint64         `json:"tick"`
	Chunks          []SurfaceChunk `json:"chunks"`
}

// SurfaceChunk carries one chunk's blocks, x fastest then z then y,
// RLE-compressed (internal/sim/encoding).
type SurfaceChunk struct {
	CX        int    `json:"cx"`
	CZ        int    `json:"cz"`
	BlocksRLE string `json:"blocks_rle"`
}

// Client -> Server over HTTP: POST /v1/tasks designation payload. This is the
// entry point the selection UI calls; the sim applies it at the next tick
// boundary.
type DesignateRequest struct {
	Kind     string `json:"kind"` // DIG | PLACE | STAIRS
	Pos      [3]int `json:"pos"`
	Material string `json:"material,omitempty"` // PLACE only, palette name
}

type DesignateResponse struct {
	TaskID uint64 `json:"task_id"`
}
