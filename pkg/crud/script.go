// Package crud generates CRUD scripts and drives CRUD connections
package crud

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Op is one CRUD verb
type Op int

const (
	OpCreate Op = iota
	OpRead
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpRead:
		return "read"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Counts is the number of operations of each verb one connection performs
type Counts struct {
	Creates int
	Reads   int
	Updates int
	Deletes int
}

// Total returns the number of operations
func (c Counts) Total() int {
	return c.Creates + c.Reads + c.Updates + c.Deletes
}

// Step is one scripted operation. Create and read steps carry their target id;
// update and delete act on the current document.
type Step struct {
	Op         Op
	DocumentID string
}

// Script is the ordered operations of one connection
type Script []Step

// Counts returns how many steps of each verb the script holds
func (s Script) Counts() Counts {
	var c Counts
	for _, step := range s {
		switch step.Op {
		case OpCreate:
			c.Creates++
		case OpRead:
			c.Reads++
		case OpUpdate:
			c.Updates++
		case OpDelete:
			c.Deletes++
		}
	}
	return c
}

func (s Script) String() string {
	parts := make([]string, len(s))
	for i, step := range s {
		if step.DocumentID != "" {
			parts[i] = step.Op.String() + "(" + step.DocumentID + ")"
		} else {
			parts[i] = step.Op.String()
		}
	}
	return strings.Join(parts, " ")
}

// IDSpace is the document ids one connection may use
type IDSpace struct {
	// BulkFirst and BulkCount delimit ids inserted by this connection's bulk phase.
	// BulkCount is 0 when no bulk phase ran.
	BulkFirst int64
	BulkCount int64
	// CreateFirst is the first id this connection creates. It lies above every bulk id.
	CreateFirst int64
}

// IDSpaceFor lays out the ids of connection. Bulk ids are the connection's own bulk
// insert range; created ids follow every bulk id of the run.
func IDSpaceFor(connection, connections int, bulkPerConnection int64, creates int) IDSpace {
	return IDSpace{
		BulkFirst:   int64(connection) * bulkPerConnection,
		BulkCount:   bulkPerConnection,
		CreateFirst: int64(connections)*bulkPerConnection + int64(connection)*int64(creates),
	}
}

// bulkReads returns how many reads must target bulk inserted documents. Each
// document is acquired once, by a create or a bulk read, and deleted at most once.
func bulkReads(counts Counts) int {
	if counts.Creates == 0 {
		return counts.Reads
	}
	if d := counts.Deletes - counts.Creates; d > 0 {
		return d
	}
	return 0
}

// CheckCounts reports whether a script with counts can be generated when
// bulkAvailable documents of the connection's bulk range may be read
func CheckCounts(counts Counts, bulkAvailable int64) error {
	if counts.Creates < 0 || counts.Reads < 0 || counts.Updates < 0 || counts.Deletes < 0 {
		return fmt.Errorf("operation counts must not be negative")
	}
	b := bulkReads(counts)
	if b > counts.Reads || counts.Deletes > counts.Creates+b {
		return fmt.Errorf("%d deletes need as many documents but only %d creates and %d reads are scripted",
			counts.Deletes, counts.Creates, counts.Reads)
	}
	if int64(b) > bulkAvailable {
		return fmt.Errorf("%d reads of bulk inserted documents are needed but only %d exist per connection",
			b, bulkAvailable)
	}
	if counts.Updates > 0 && counts.Creates == 0 && b == 0 {
		return fmt.Errorf("updates need a created or read document")
	}
	return nil
}

type segment struct {
	create   bool
	reads    int
	updates  int
	deletes  bool
	targetID string
}

// NewScript generates the operations of one connection. Every document is acquired by
// a create or by the single read of one bulk id, then receives its share of reads and
// updates, then is optionally deleted; the documents' lifecycles are shuffled.
func NewScript(counts Counts, ids IDSpace, seed int64) (Script, error) {
	if err := CheckCounts(counts, ids.BulkCount); err != nil {
		return nil, err
	}
	r := rand.New(rand.NewSource(seed))

	b := bulkReads(counts)
	segments := make([]*segment, 0, counts.Creates+b)
	for i := 0; i < counts.Creates; i++ {
		segments = append(segments, &segment{create: true})
	}
	for i := 0; i < b; i++ {
		segments = append(segments, &segment{})
	}

	// Extra reads re-read a created document, so they only go to created segments.
	for i := 0; i < counts.Reads-b; i++ {
		segments[r.Intn(counts.Creates)].reads++
	}
	for i := 0; i < counts.Updates; i++ {
		segments[r.Intn(len(segments))].updates++
	}
	for _, i := range r.Perm(len(segments))[:counts.Deletes] {
		segments[i].deletes = true
	}

	r.Shuffle(len(segments), func(i, j int) { segments[i], segments[j] = segments[j], segments[i] })

	script := make(Script, 0, counts.Total())
	nextCreate, nextBulk := ids.CreateFirst, ids.BulkFirst
	for _, seg := range segments {
		var id string
		if seg.create {
			id = strconv.FormatInt(nextCreate, 10)
			nextCreate++
			script = append(script, Step{Op: OpCreate, DocumentID: id})
		} else {
			id = strconv.FormatInt(nextBulk, 10)
			nextBulk++
			script = append(script, Step{Op: OpRead, DocumentID: id})
		}

		body := make([]Op, 0, seg.reads+seg.updates)
		for i := 0; i < seg.reads; i++ {
			body = append(body, OpRead)
		}
		for i := 0; i < seg.updates; i++ {
			body = append(body, OpUpdate)
		}
		r.Shuffle(len(body), func(i, j int) { body[i], body[j] = body[j], body[i] })
		for _, op := range body {
			if op == OpRead {
				script = append(script, Step{Op: OpRead, DocumentID: id})
			} else {
				script = append(script, Step{Op: OpUpdate})
			}
		}

		if seg.deletes {
			script = append(script, Step{Op: OpDelete})
		}
	}
	return script, nil
}
