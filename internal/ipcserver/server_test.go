//go:build !windows

package ipcserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ddas/ddas/internal/aggregate"
	"github.com/ddas/ddas/internal/logging"
	"github.com/ddas/ddas/internal/record"
)

// dialEndpoint connects to the Unix domain socket listen() would have
// created for name, matching listener_posix.go's fixed-path convention.
func dialEndpoint(t *testing.T, name string) net.Conn {
	t.Helper()
	socketPath := filepath.Join(os.TempDir(), name+".sock")
	var conn net.Conn
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err = net.Dial("unix", socketPath)
		if err == nil {
			return conn
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("unable to dial %s: %v", socketPath, err)
	return nil
}

// readFrame reads one newline-delimited JSON frame off reader, failing the
// test if none arrives before the connection's read deadline.
func readFrame(t *testing.T, reader *bufio.Reader) map[string]interface{} {
	t.Helper()
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("unable to read frame: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("unable to decode frame %q: %v", line, err)
	}
	return decoded
}

// existingFile creates a small file named name under dir and returns its
// path, so that replay's stat recheck counts it as still existing.
func existingFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestReplayActiveGroupsOrderingOverRealSocket covers §8 scenario 6: a
// client that connects to the IPC endpoint receives every still-active
// duplicate group, in the order the groups were first observed.
func TestReplayActiveGroupsOrderingOverRealSocket(t *testing.T) {
	aggregator := aggregate.New(logging.RootLogger, 100, 100, 5*time.Millisecond)
	dir := t.TempDir()

	// First group: digest "d1", observed before "d2".
	aggregator.OnDuplicate(
		record.FileRecord{Path: existingFile(t, dir, "d1a"), Digest: "d1"},
		[]record.FileRecord{{Path: existingFile(t, dir, "d1b"), Digest: "d1"}},
		time.Now(),
	)
	// Second group: digest "d2", observed after "d1".
	aggregator.OnDuplicate(
		record.FileRecord{Path: existingFile(t, dir, "d2a"), Digest: "d2"},
		[]record.FileRecord{{Path: existingFile(t, dir, "d2b"), Digest: "d2"}},
		time.Now(),
	)

	endpoint := fmt.Sprintf("ddas_ipc_test_%d", time.Now().UnixNano())
	server := New(logging.RootLogger, endpoint, aggregator)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer server.Stop()

	conn := dialEndpoint(t, endpoint)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)

	first := readFrame(t, reader)
	second := readFrame(t, reader)

	firstDigest := first["trigger_file"].(map[string]interface{})["filehash"]
	secondDigest := second["trigger_file"].(map[string]interface{})["filehash"]

	if firstDigest != "d1" {
		t.Fatalf("expected the first replayed group to be d1 (observed first), got %v", firstDigest)
	}
	if secondDigest != "d2" {
		t.Fatalf("expected the second replayed group to be d2 (observed second), got %v", secondDigest)
	}
}

// TestClientReconnectReplaysAgain covers the reconnect half of scenario 6:
// after a client disconnects, the aggregator's groups are marked
// undelivered again, so a fresh connection replays them from scratch.
func TestClientReconnectReplaysAgain(t *testing.T) {
	aggregator := aggregate.New(logging.RootLogger, 100, 100, 5*time.Millisecond)
	dir := t.TempDir()
	aggregator.OnDuplicate(
		record.FileRecord{Path: existingFile(t, dir, "a"), Digest: "d1"},
		[]record.FileRecord{{Path: existingFile(t, dir, "b"), Digest: "d1"}},
		time.Now(),
	)

	endpoint := fmt.Sprintf("ddas_ipc_test_%d", time.Now().UnixNano())
	server := New(logging.RootLogger, endpoint, aggregator)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer server.Stop()

	firstConn := dialEndpoint(t, endpoint)
	firstConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	readFrame(t, bufio.NewReader(firstConn))
	firstConn.Close()

	// acceptLoop only re-enters Accept once handleConnection returns, and
	// that return path already calls OnClientDisconnect — so by the time
	// the second connection is accepted and its replay is sent, the group
	// is marked undelivered again. The dial itself may complete earlier
	// (the socket backlog queues it), but the replay frame read below only
	// arrives after that accept.
	secondConn := dialEndpoint(t, endpoint)
	defer secondConn.Close()
	secondConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	replayed := readFrame(t, bufio.NewReader(secondConn))

	digest := replayed["trigger_file"].(map[string]interface{})["filehash"]
	if digest != "d1" {
		t.Fatalf("expected the group to be replayed again on reconnect, got %v", digest)
	}
}
