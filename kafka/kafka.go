// Package kafka holds the data model shared by every other package in this
// module: brokers, topics, partitions, and the protocol error type. It has
// no network code of its own; see package broker for the wire connection,
// package producer and package group for the client-facing APIs.
package kafka

import (
	"fmt"
	"net"
	"strconv"

	"github.com/cafegrp/cafegrp/proto/errors"
)

// DefaultPort is the Kafka broker port used when none is given explicitly.
const DefaultPort = 9092

// Broker identifies one node in the cluster. NodeID is the identity used by
// Partition.LeaderID/Replicas/Isr; Host/Port identify the TCP endpoint.
type Broker struct {
	NodeID int32
	Host   string
	Port   int32
}

// Addr returns the host:port to dial for this broker.
func (b Broker) Addr() string {
	return net.JoinHostPort(b.Host, strconv.Itoa(int(b.Port)))
}

// Partition is one partition of a Topic as last seen in a Metadata response.
// LeaderKnown is false when the partition is between leader elections;
// LeaderID is then 0, which is also a valid broker id in real clusters,
// so callers must check LeaderKnown before using LeaderID.
type Partition struct {
	ID          int32
	LeaderID    int32
	LeaderKnown bool
	Replicas    []int32
	Isr         []int32
	Error       errors.Code
}

// Topic is a named set of partitions. Name is immutable once constructed.
type Topic struct {
	Name       string
	Partitions []Partition
}

// Partition looks up a partition by id, or returns nil.
func (t *Topic) Partition(id int32) *Partition {
	for i := range t.Partitions {
		if t.Partitions[i].ID == id {
			return &t.Partitions[i]
		}
	}
	return nil
}

// Error wraps a Kafka protocol error code returned in a response body. It is
// distinct from transport-level errors (see package broker), which never
// carry a Code.
type Error struct {
	API  string
	Code errors.Code
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.API, e.Code)
}

// Is makes errors.Is(err, &Error{Code: c}) match any *Error carrying code c,
// whatever its API.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code
}
