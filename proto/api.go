// Package proto defines the Kafka 0.8.x request/response structs this
// module speaks, plus the Header every request carries. Request holds a
// header, a per-API body and the HasResponse flag; Response holds a raw
// reply for the caller to Unmarshal into the concrete per-API struct.
// Package broker moves both without knowing the concrete API.
package proto

// ApiKey values, per https://kafka.apache.org/protocol — only the ones
// this module implements.
const (
	Produce          int16 = 0
	Fetch            int16 = 1
	ListOffsets      int16 = 2
	Metadata         int16 = 3
	OffsetCommit     int16 = 8
	OffsetFetch      int16 = 9
	FindCoordinator  int16 = 10
	JoinGroup        int16 = 11
	Heartbeat        int16 = 12
	SyncGroup        int16 = 14
	ApiVersions      int16 = 18
	CreateTopics     int16 = 19
	DeleteTopics     int16 = 20
)

var Names = map[int16]string{
	Produce:         "Produce",
	Fetch:           "Fetch",
	ListOffsets:     "ListOffsets",
	Metadata:        "Metadata",
	OffsetCommit:    "OffsetCommit",
	OffsetFetch:     "OffsetFetch",
	FindCoordinator: "FindCoordinator",
	JoinGroup:       "JoinGroup",
	Heartbeat:       "Heartbeat",
	SyncGroup:       "SyncGroup",
	ApiVersions:     "ApiVersions",
	CreateTopics:    "CreateTopics",
	DeleteTopics:    "DeleteTopics",
}

// Header is prepended to every request body by Request.Bytes; callers never
// construct the wire bytes for it directly.
type Header struct {
	ApiKey        int16
	ApiVersion    int16
	CorrelationId int32
	ClientId      string
}
