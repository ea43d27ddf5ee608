package cmd

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStartedVault(t *testing.T, ctx context.Context) *vault {
	t.Helper()
	root := newTestVault(t)
	v, err := openVault(ctx, root, vaultOptions{})
	require.NoError(t, err)
	require.NoError(t, v.svc.Start(ctx))
	return v
}

func readLog(t *testing.T, v *vault) string {
	t.Helper()
	data, err := os.ReadFile(v.cfg.Logging.File)
	require.NoError(t, err)
	return string(data)
}

func TestReconcileInBackground_IndexesVault(t *testing.T) {
	// Given: a started vault
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	v := openStartedVault(t, ctx)

	// When: reconciling in the background
	wait := reconcileInBackground(ctx, v)
	require.Eventually(t, func() bool { return v.svc.Index().Len() == 3 }, 5*time.Second, 10*time.Millisecond)
	wait()
	require.NoError(t, v.Close(context.Background()))

	// Then: the pass completed and was logged
	log := readLog(t, v)
	assert.Contains(t, log, "reconcile_complete")
	assert.NotContains(t, log, "reconcile_failed")
}

func TestReconcileInBackground_WaitBeforeCloseOnFastShutdown(t *testing.T) {
	// Given: a started vault with a background pass just launched
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	v := openStartedVault(t, ctx)
	wait := reconcileInBackground(ctx, v)

	// When: shutting down at once
	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("background reconcile did not stop")
	}
	require.NoError(t, v.Close(context.Background()))

	// Then: no failure is reported for the interrupted pass
	assert.NotContains(t, readLog(t, v), "reconcile_failed")
}
