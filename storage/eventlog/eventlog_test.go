package eventlog

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"paylinkchain/core/events"
	"paylinkchain/core/types"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestAppendAndList(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		store.Emit(events.Wrapped{Evt: &types.Event{
			Type: "escrow.deposited",
			Attributes: map[string]string{
				"commitment": fmt.Sprintf("%064x", i),
				"owner":      "plk1owner",
				"amount":     fmt.Sprint(10 * (i + 1)),
			},
		}})
	}
	_, err := store.Append(ctx, &types.Event{Type: "privacy.toggled", Attributes: map[string]string{"owner": "plk1other"}})
	require.NoError(t, err)

	all, err := store.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, entry := range all {
		require.Equal(t, uint64(i+1), entry.Seq)
	}
	require.Equal(t, "20", all[1].Event.Attributes["amount"])

	deposits, err := store.List(ctx, Query{Type: "escrow.deposited", AfterSeq: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	require.Equal(t, uint64(2), deposits[0].Seq)

	byCommitment, err := store.List(ctx, Query{Commitment: fmt.Sprintf("%064x", 2)})
	require.NoError(t, err)
	require.Len(t, byCommitment, 1)

	byAccount, err := store.List(ctx, Query{Account: "plk1other"})
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	require.Equal(t, "privacy.toggled", byAccount[0].Event.Type)
}

func TestSequenceSurvivesReopen(t *testing.T) {
	store, path := openTestStore(t)
	_, err := store.Append(context.Background(), &types.Event{Type: "admin.initialized", Attributes: map[string]string{}})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	seq, err := reopened.Append(context.Background(), &types.Event{Type: "admin.paused", Attributes: map[string]string{}})
	require.NoError(t, err)
	require.Equal(t, uint64(2), seq)
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err != ErrPathRequired {
		t.Fatalf("expected ErrPathRequired, got %v", err)
	}
}
