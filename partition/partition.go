// Package partition chooses a destination partition for a produced
// message. It ships three strategies: Murmur2 (Kafka's own default,
// used when a message has a key), RoundRobin (Kafka's default when a
// message has no key), and Manual (a fixed partition the caller already
// decided on).
package partition

// Partitioner picks a partition index in [0, numPartitions) for a
// message with the given key. An implementation set as a producer's
// Partitioner must be safe for concurrent use; the producer calls one
// Partitioner from many goroutines. RoundRobin is not (see its doc).
type Partitioner interface {
	Partition(key []byte, numPartitions int) int32
}

// Manual always returns the partition it was constructed with,
// ignoring numPartitions and key; the producer falls back to another
// strategy if the caller didn't ask for a specific partition.
type Manual struct {
	Partition_ int32
}

func (m Manual) Partition(key []byte, numPartitions int) int32 {
	return m.Partition_
}

// Murmur2 hashes the key with Kafka's default Java-compatible murmur2
// algorithm and reduces modulo numPartitions, exactly matching the
// Java client's DefaultPartitioner for keyed messages.
type Murmur2 struct{}

func (Murmur2) Partition(key []byte, numPartitions int) int32 {
	if numPartitions <= 0 {
		return 0
	}
	h := murmur2(key) & 0x7fffffff
	return int32(h) % int32(numPartitions)
}

// Straight from the C++ code and the Java code duplicating it:
// https://github.com/apache/kafka/blob/d91a94e/clients/src/main/java/org/apache/kafka/common/utils/Utils.java#L383-L421
// https://github.com/aappleby/smhasher/blob/61a0530f/src/MurmurHash2.cpp#L37-L86
func murmur2(b []byte) uint32 {
	const (
		seed uint32 = 0x9747b28c
		m    uint32 = 0x5bd1e995
		r           = 24
	)
	h := seed ^ uint32(len(b))
	for len(b) >= 4 {
		k := uint32(b[3])<<24 + uint32(b[2])<<16 + uint32(b[1])<<8 + uint32(b[0])
		b = b[4:]
		k *= m
		k ^= k >> r
		k *= m

		h *= m
		h ^= k
	}
	switch len(b) {
	case 3:
		h ^= uint32(b[2]) << 16
		fallthrough
	case 2:
		h ^= uint32(b[1]) << 8
		fallthrough
	case 1:
		h ^= uint32(b[0])
		h *= m
	}

	h ^= h >> 13
	h *= m
	h ^= h >> 15
	return h
}

// RoundRobin cycles through every available partition in order,
// independent of key; this is Kafka's default for unkeyed messages.
// Not safe for concurrent use without external synchronization — the
// producer keeps one RoundRobin per topic behind its own lock.
type RoundRobin struct {
	next int32
}

func (r *RoundRobin) Partition(key []byte, numPartitions int) int32 {
	if numPartitions <= 0 {
		return 0
	}
	p := r.next % int32(numPartitions)
	r.next++
	return p
}

// Choose picks a partitioner for a message the way Kafka's Java client
// does: Murmur2 on the key when present, RoundRobin otherwise.
func Choose(key []byte, rr *RoundRobin, numPartitions int) int32 {
	if key != nil {
		return Murmur2{}.Partition(key, numPartitions)
	}
	return rr.Partition(nil, numPartitions)
}
