package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verity/internal/core/domain"
)

func TestRootCmd_PersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	for _, name := range []string{"verbose", "log-level", "config-dir", "data-dir", "collection", "ephemeral"} {
		assert.NotNil(t, flags.Lookup(name), "missing flag %s", name)
	}
	assert.Equal(t, "c", flags.Lookup("collection").Shorthand)
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"ingest", "query", "batch", "check", "info", "route", "mcp", "config", "version"} {
		assert.True(t, names[name], "missing command %s", name)
	}
}

func TestTargetCollection(t *testing.T) {
	defer resetFlags()

	collection = ""
	assert.Equal(t, defaultCollection, targetCollection())

	collection = "faq"
	assert.Equal(t, "faq", targetCollection())
}

func TestCheckCmd_PrintsVerdict(t *testing.T) {
	ts, cleanup := setupTestServicesWith()
	defer cleanup()

	out, err := execute(t, "check", "--top-k", "4", "Refunds take five days.")

	require.NoError(t, err)
	assert.Contains(t, out, "PARTIALLY_SUPPORTED")
	assert.Contains(t, out, "0.520")
	assert.Equal(t, 4, ts.grounding.lastTopK)
}

func TestCheckCmd_JSON(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "check", "--json", "Refunds take five days.")

	require.NoError(t, err)
	var verdict domain.GroundingVerdict
	require.NoError(t, json.Unmarshal([]byte(out), &verdict))
	assert.Equal(t, domain.VerdictPartiallySupported, verdict.Verdict)
}

func TestRouteCmd(t *testing.T) {
	t.Run("grounded complaint prints department", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		out, err := execute(t, "route", "My refund never arrived")

		require.NoError(t, err)
		assert.Contains(t, out, "Department: CARD")
		assert.Contains(t, out, "Based on: card_policy / Refunds")
	})

	t.Run("ungrounded complaint is not routed", func(t *testing.T) {
		ts, cleanup := setupTestServicesWith()
		defer cleanup()
		ts.routing.grounded = false

		out, err := execute(t, "route", "What's the weather?")

		require.NoError(t, err)
		assert.Contains(t, out, "No department found")
	})
}

func TestInfoCmd(t *testing.T) {
	t.Run("default collection", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		out, err := execute(t, "info")

		require.NoError(t, err)
		assert.Contains(t, out, "bank_policies (ready)")
		assert.Contains(t, out, "Chunks:    42")
		assert.Contains(t, out, "fnv-hash-384 (384 dimensions)")
	})

	t.Run("all collections", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		out, err := execute(t, "info", "--all")

		require.NoError(t, err)
		assert.Contains(t, out, "bank_policies (ready)")
		assert.Contains(t, out, "drafts (empty)")
	})

	t.Run("json", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		out, err := execute(t, "info", "--json", "-c", "faq")

		require.NoError(t, err)
		var stats domain.CollectionStats
		require.NoError(t, json.Unmarshal([]byte(out), &stats))
		assert.Equal(t, "faq", stats.Name)
	})
}

func TestIngestCmd(t *testing.T) {
	t.Run("ingests paths into default collection", func(t *testing.T) {
		ts, cleanup := setupTestServicesWith()
		defer cleanup()

		out, err := execute(t, "ingest", "--force", "./policies", "./faq")

		require.NoError(t, err)
		assert.Equal(t, []string{"./policies", "./faq"}, ts.connectArg)
		assert.Equal(t, defaultCollection, ts.ingest.lastCollection)
		assert.True(t, ts.ingest.lastOpts.Force)
		assert.False(t, ts.ingest.lastOpts.Reindex)
		assert.True(t, ts.connector.closed)
		assert.Contains(t, out, "Ingested:  2")
		assert.Contains(t, out, "file:///corpus/bad.md")
		assert.Equal(t, 0, ts.watch.calls)
	})

	t.Run("watch runs until cancelled", func(t *testing.T) {
		ts, cleanup := setupTestServicesWith()
		defer cleanup()

		out, err := execute(t, "ingest", "--watch", "--reindex", "-c", "faq", "./faq")

		require.NoError(t, err)
		assert.Equal(t, "faq", ts.ingest.lastCollection)
		assert.True(t, ts.ingest.lastOpts.Reindex)
		assert.Equal(t, 1, ts.watch.calls)
		assert.Contains(t, out, "Watching 1 path(s)")
	})

	t.Run("requires a path", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		_, err := execute(t, "ingest")

		assert.Error(t, err)
	})
}

func TestRootCmd_RejectsUnknownLogLevel(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "info", "--log-level", "loud")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}
