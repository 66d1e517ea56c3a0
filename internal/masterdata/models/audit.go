package models

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	id "masterdata/pkg/domain"
)

// AuditEvent records one accepted write. Events are append-only; Seq orders
// them per (entity, field) and Hash chains each event to its predecessor.
type AuditEvent struct {
	ID         id.AuditEventID
	EntityID   id.EntityID
	RowID      *id.RowID
	FieldNo    FieldNo
	Seq        int64
	OldValue   *string
	NewValue   string
	Source     Source
	EvidenceID string
	ActorID    string
	Reason     string
	Confidence *float64
	Timestamp  time.Time
	PrevHash   string
	Hash       string
}

// AuditPrecision is the timestamp resolution persisted by every store.
const AuditPrecision = time.Microsecond

const hashFieldSep = "\x1f"

// ChainHash computes the hash of e linked to prevHash. Stores call it after
// assigning Seq and PrevHash.
func ChainHash(prevHash string, e AuditEvent) string {
	var b strings.Builder
	write := func(s string) {
		b.WriteString(s)
		b.WriteString(hashFieldSep)
	}
	write(prevHash)
	write(e.ID.String())
	write(e.EntityID.String())
	if e.RowID != nil {
		write(e.RowID.String())
	} else {
		write("")
	}
	write(strconv.Itoa(int(e.FieldNo)))
	write(strconv.FormatInt(e.Seq, 10))
	if e.OldValue != nil {
		write("1" + *e.OldValue)
	} else {
		write("0")
	}
	write(e.NewValue)
	write(string(e.Source))
	write(e.EvidenceID)
	write(e.ActorID)
	write(e.Reason)
	if e.Confidence != nil {
		write(strconv.FormatFloat(*e.Confidence, 'g', -1, 64))
	} else {
		write("")
	}
	write(e.Timestamp.UTC().Truncate(AuditPrecision).Format(time.RFC3339Nano))
	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Seal assigns the chain position of e given the previous event of the same
// (entity, field), or nil when e is the first.
func Seal(e AuditEvent, prev *AuditEvent) AuditEvent {
	e.Timestamp = e.Timestamp.UTC().Truncate(AuditPrecision)
	if prev == nil {
		e.Seq = 1
		e.PrevHash = ""
	} else {
		e.Seq = prev.Seq + 1
		e.PrevHash = prev.Hash
	}
	e.Hash = ChainHash(e.PrevHash, e)
	return e
}

// VerifyChain checks that events (one entity, one field, oldest first) form an
// unbroken hash chain.
func VerifyChain(events []AuditEvent) error {
	prevHash := ""
	for i, e := range events {
		if e.Seq != int64(i+1) {
			return fmt.Errorf("audit event %s: expected seq %d, got %d", e.ID, i+1, e.Seq)
		}
		if e.PrevHash != prevHash {
			return fmt.Errorf("audit event %s: broken link at seq %d", e.ID, e.Seq)
		}
		if ChainHash(e.PrevHash, e) != e.Hash {
			return fmt.Errorf("audit event %s: hash mismatch at seq %d", e.ID, e.Seq)
		}
		prevHash = e.Hash
	}
	return nil
}
