/*
Package lock implements the cross-node advisory file lock that serializes
Fetch and Build across processes sharing a data directory.

A lock is a file at "<dir>/<operation>.lock" whose existence denotes
possession. The payload inside (owner id, host, time) is forensic only;
acquisition is decided purely by whether the create-exclusive file
operation succeeds.

	l := lock.New(dataDir, "fetch")
	acquired, err := l.Acquire()
	if err != nil { ... }
	if !acquired { return types.ErrLockedByPeer }
	defer l.Release()

A lock whose file mtime is more than StaleAfter old is treated as
abandoned by a crashed holder: Acquire unlinks it (best-effort) and
proceeds to claim it. Fetch and Build are themselves idempotent, so a
loser's partial output is simply discarded and a winner's output
supersedes it.
*/
package lock
