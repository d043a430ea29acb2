// Package errors defines the fixed Kafka protocol error code enumeration.
// Unknown codes (anything the broker returns that isn't in the table below)
// decode to Unknown(code) rather than failing the decode.
package errors

import "fmt"

// Code is a Kafka protocol error code as carried in a response body.
type Code int16

const (
	NONE                            Code = 0
	OFFSET_OUT_OF_RANGE             Code = 1
	CORRUPT_MESSAGE                 Code = 2
	UNKNOWN_TOPIC_OR_PARTITION      Code = 3
	INVALID_FETCH_SIZE              Code = 4
	LEADER_NOT_AVAILABLE            Code = 5
	NOT_LEADER_FOR_PARTITION        Code = 6
	REQUEST_TIMED_OUT               Code = 7
	BROKER_NOT_AVAILABLE            Code = 8
	REPLICA_NOT_AVAILABLE           Code = 9
	MESSAGE_TOO_LARGE               Code = 10
	STALE_CONTROLLER_EPOCH          Code = 11
	OFFSET_METADATA_TOO_LARGE       Code = 12
	NETWORK_EXCEPTION               Code = 13
	OFFSETS_LOAD_IN_PROGRESS        Code = 14
	CONSUMER_COORDINATOR_NOT_AVAILABLE Code = 15
	NOT_COORDINATOR_FOR_CONSUMER    Code = 16
	INVALID_TOPIC_EXCEPTION         Code = 17
	RECORD_LIST_TOO_LARGE           Code = 18
	NOT_ENOUGH_REPLICAS             Code = 19
	NOT_ENOUGH_REPLICAS_AFTER_APPEND Code = 20
	INVALID_REQUIRED_ACKS           Code = 21
	ILLEGAL_GENERATION              Code = 22
	INCONSISTENT_GROUP_PROTOCOL     Code = 23
	INVALID_GROUP_ID                Code = 24
	UNKNOWN_MEMBER_ID               Code = 25
	INVALID_SESSION_TIMEOUT         Code = 26
	REBALANCE_IN_PROGRESS           Code = 27
	INVALID_COMMIT_OFFSET_SIZE      Code = 28
	TOPIC_AUTHORIZATION_FAILED      Code = 29
	GROUP_AUTHORIZATION_FAILED      Code = 30
	CLUSTER_AUTHORIZATION_FAILED    Code = 31
	INVALID_TIMESTAMP               Code = 32
	UNSUPPORTED_SASL_MECHANISM      Code = 33
	ILLEGAL_SASL_STATE              Code = 34
	UNSUPPORTED_VERSION             Code = 35
	TOPIC_ALREADY_EXISTS            Code = 36
	INVALID_PARTITIONS              Code = 37
	INVALID_REPLICATION_FACTOR      Code = 38
)

var names = map[Code]string{
	NONE:                            "NONE",
	OFFSET_OUT_OF_RANGE:             "OFFSET_OUT_OF_RANGE",
	CORRUPT_MESSAGE:                 "CORRUPT_MESSAGE",
	UNKNOWN_TOPIC_OR_PARTITION:      "UNKNOWN_TOPIC_OR_PARTITION",
	INVALID_FETCH_SIZE:              "INVALID_FETCH_SIZE",
	LEADER_NOT_AVAILABLE:            "LEADER_NOT_AVAILABLE",
	NOT_LEADER_FOR_PARTITION:        "NOT_LEADER_FOR_PARTITION",
	REQUEST_TIMED_OUT:               "REQUEST_TIMED_OUT",
	BROKER_NOT_AVAILABLE:            "BROKER_NOT_AVAILABLE",
	REPLICA_NOT_AVAILABLE:           "REPLICA_NOT_AVAILABLE",
	MESSAGE_TOO_LARGE:               "MESSAGE_TOO_LARGE",
	STALE_CONTROLLER_EPOCH:          "STALE_CONTROLLER_EPOCH",
	OFFSET_METADATA_TOO_LARGE:       "OFFSET_METADATA_TOO_LARGE",
	NETWORK_EXCEPTION:               "NETWORK_EXCEPTION",
	OFFSETS_LOAD_IN_PROGRESS:        "OFFSETS_LOAD_IN_PROGRESS",
	CONSUMER_COORDINATOR_NOT_AVAILABLE: "CONSUMER_COORDINATOR_NOT_AVAILABLE",
	NOT_COORDINATOR_FOR_CONSUMER:    "NOT_COORDINATOR_FOR_CONSUMER",
	INVALID_TOPIC_EXCEPTION:         "INVALID_TOPIC_EXCEPTION",
	RECORD_LIST_TOO_LARGE:           "RECORD_LIST_TOO_LARGE",
	NOT_ENOUGH_REPLICAS:             "NOT_ENOUGH_REPLICAS",
	NOT_ENOUGH_REPLICAS_AFTER_APPEND: "NOT_ENOUGH_REPLICAS_AFTER_APPEND",
	INVALID_REQUIRED_ACKS:           "INVALID_REQUIRED_ACKS",
	ILLEGAL_GENERATION:              "ILLEGAL_GENERATION",
	INCONSISTENT_GROUP_PROTOCOL:     "INCONSISTENT_GROUP_PROTOCOL",
	INVALID_GROUP_ID:                "INVALID_GROUP_ID",
	UNKNOWN_MEMBER_ID:               "UNKNOWN_MEMBER_ID",
	INVALID_SESSION_TIMEOUT:         "INVALID_SESSION_TIMEOUT",
	REBALANCE_IN_PROGRESS:           "REBALANCE_IN_PROGRESS",
	INVALID_COMMIT_OFFSET_SIZE:      "INVALID_COMMIT_OFFSET_SIZE",
	TOPIC_AUTHORIZATION_FAILED:      "TOPIC_AUTHORIZATION_FAILED",
	GROUP_AUTHORIZATION_FAILED:      "GROUP_AUTHORIZATION_FAILED",
	CLUSTER_AUTHORIZATION_FAILED:    "CLUSTER_AUTHORIZATION_FAILED",
	INVALID_TIMESTAMP:               "INVALID_TIMESTAMP",
	UNSUPPORTED_SASL_MECHANISM:      "UNSUPPORTED_SASL_MECHANISM",
	ILLEGAL_SASL_STATE:              "ILLEGAL_SASL_STATE",
	UNSUPPORTED_VERSION:             "UNSUPPORTED_VERSION",
	TOPIC_ALREADY_EXISTS:            "TOPIC_ALREADY_EXISTS",
	INVALID_PARTITIONS:              "INVALID_PARTITIONS",
	INVALID_REPLICATION_FACTOR:      "INVALID_REPLICATION_FACTOR",
}

// String renders the code's name, or Unknown(code) if not in the table.
func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int16(c))
}

// OK reports whether the code signals success.
func (c Code) OK() bool { return c == NONE }
