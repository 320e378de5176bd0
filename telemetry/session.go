package telemetry

import "context"

// ChannelType enumerates the telemetry channel kinds the session must be
// able to persist (spec §6.2's minimum {CustomMarker, RemoteQuery}).
type ChannelType int

const (
	ChannelCustomMarker ChannelType = iota
	ChannelRemoteQuery
)

func (t ChannelType) String() string {
	switch t {
	case ChannelCustomMarker:
		return "CustomMarker"
	case ChannelRemoteQuery:
		return "RemoteQuery"
	default:
		return "Unknown"
	}
}

// ArchivedEntry is the read-only projection of a chunk entry handed to the
// session for persistence.
type ArchivedEntry struct {
	Type         EntryType
	ChannelIndex int
	MarkerID     uint64
	TimestampUs  int64
	ContextData  uint64
}

// ArchivedChunk is the read-only projection of a sealed Chunk handed to the
// session for persistence (spec §6.2).
type ArchivedChunk struct {
	ChunkID    int64
	StartUs    int64
	EndUs      int64
	Entries    []ArchivedEntry
}

// Session is the external TelemetrySession collaborator (C2): it persists
// channel metadata and archived chunks. The core never implements it —
// AMCF's DataModel/storage layer does.
type Session interface {
	CreateChannelInDB(ctx context.Context, uuid string, channelType ChannelType, channelIndex int, identifier, description string) error
	WriteChunksToArchive(ctx context.Context, chunks []ArchivedChunk) error
}

// NoopSession discards everything; useful for tests and for hosts that
// don't yet have a DataModel wired up.
type NoopSession struct{}

func (NoopSession) CreateChannelInDB(context.Context, string, ChannelType, int, string, string) error {
	return nil
}

func (NoopSession) WriteChunksToArchive(context.Context, []ArchivedChunk) error { return nil }
