package utils

import "testing"

func TestLiveCallScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if liveCallAcquireScript == nil || liveCallReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}
