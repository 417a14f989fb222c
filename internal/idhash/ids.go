// Package idhash computes deterministic identifiers so that replaying the
// same blueprints with the same config yields byte-identical ledgers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ComputeRunID computes a deterministic run_id from the config preset, the
// blueprint set fingerprint and the caller-provided label.
// Formula: SHA256(label|preset|blueprint_fingerprint). Hex, 64 chars.
func ComputeRunID(label, presetID, blueprintFingerprint string) string {
	return sum(fmt.Sprintf("run|%s|%s|%s", label, presetID, blueprintFingerprint))
}

// ComputeBlueprintFingerprint hashes the identity keys of a blueprint set
// so the run id changes whenever the input set does. Keys are sorted, so
// the fingerprint does not depend on input order.
func ComputeBlueprintFingerprint(keys []string) string {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)
	return sum("bps|" + strings.Join(sorted, "|"))
}

// ComputePositionID computes a deterministic position_id.
// Formula: SHA256(run_id|signal_id|contract_id|entry_time). Hex, 64 chars.
func ComputePositionID(runID, signalID, contractID string, entryTime int64) string {
	return sum(fmt.Sprintf("pos|%s|%s|%s|%d", runID, signalID, contractID, entryTime))
}

// ComputeMarkerPositionID computes the id of a synthetic reset marker
// position, keyed by the reset ordinal so repeated resets stay unique.
func ComputeMarkerPositionID(runID string, resetOrdinal int, timestampMs int64) string {
	return sum(fmt.Sprintf("marker|%s|%d|%d", runID, resetOrdinal, timestampMs))
}

// ComputeEventID computes a deterministic event_id from the run and the
// ledger sequence number assigned at emission.
func ComputeEventID(runID string, seq int64) string {
	return sum(fmt.Sprintf("evt|%s|%d", runID, seq))
}

// ComputeFillID computes a deterministic fill_id from the run and the
// fill ordinal.
func ComputeFillID(runID string, ordinal int64) string {
	return sum(fmt.Sprintf("fill|%s|%d", runID, ordinal))
}

func sum(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}
