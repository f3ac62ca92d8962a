package orchestrator

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"

	"github.com/00PrabalK00/RosScope/diagnostics"
)

func sha1Hex(payload []byte) string {
	sum := sha1.Sum(payload)

	return hex.EncodeToString(sum[:])
}

func hashSection(value any) string {
	payload, err := json.Marshal(value)
	if err != nil {
		return ""
	}

	return sha1Hex(payload)
}

// sectionHashes digests each snapshot section from its compact JSON encoding.
// timestamp_utc, the version/etag bookkeeping, and the cross-correlation
// timeline (which gains a stamped row every tick regardless of content) stay
// out of the digest so identical content fingerprints identically across
// polls.
func sectionHashes(snap Snapshot) map[string]string {
	advanced := snap.Advanced
	advanced.CrossCorrelationTimeline = diagnostics.CrossCorrelationReport{}

	return map[string]string{
		"processes_visible": hashSection(snap.ProcessesVisible),
		"domain_summaries":  hashSection(snap.DomainSummaries),
		"domains":           hashSection(snap.Domains),
		"graph":             hashSection(snap.Graph),
		"tf":                hashSection(snap.TfNav2),
		"system":            hashSection(snap.System),
		"health":            hashSection(snap.Health),
		"advanced":          hashSection(advanced),
		"fleet":             hashSection(snap.Fleet),
		"session":           hashSection(snap.Session),
		"watchdog":          hashSection(snap.Watchdog),
		"logs":              hashSection(snap.Logs),
	}
}

// fingerprintOf derives the snapshot etag from the section hash map.
// encoding/json sorts map keys, so the digest is order-independent.
func fingerprintOf(sections map[string]string) string {
	payload, err := json.Marshal(sections)
	if err != nil {
		return ""
	}

	return sha1Hex(payload)
}

// heartbeatOf strips the heavy payloads from a snapshot whose content the
// caller already holds.
func heartbeatOf(snap Snapshot) Snapshot {
	return Snapshot{
		InstanceID:           snap.InstanceID,
		TimestampUTC:         snap.TimestampUTC,
		PresetName:           snap.PresetName,
		SelectedDomain:       snap.SelectedDomain,
		ProcessOffset:        snap.ProcessOffset,
		ProcessLimit:         snap.ProcessLimit,
		ProcessTotalFiltered: snap.ProcessTotalFiltered,
		Session:              snap.Session,
		Watchdog:             snap.Watchdog,
		SyncVersion:          snap.SyncVersion,
		Etag:                 snap.Etag,
		Changed:              false,
		IdleBackoffMs:        snap.IdleBackoffMs,
		HeartbeatOnly:        true,
	}
}

// snapshotToMap renders a snapshot into a generic map for the session
// recorder.
func snapshotToMap(snap Snapshot) map[string]any {
	return snapshotToMapAny(snap)
}

func snapshotToMapAny(value any) map[string]any {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil
	}

	return out
}
