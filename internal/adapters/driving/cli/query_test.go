package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verity/internal/core/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestQueryCmd_Use(t *testing.T) {
	assert.Equal(t, "query [question]", queryCmd.Use)
}

func TestQueryCmd_RequiresExactlyOneArg(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "query")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestQueryCmd_HasTopKFlag(t *testing.T) {
	flag := queryCmd.Flags().Lookup("top-k")
	require.NotNil(t, flag, "top-k flag should exist")
	assert.Equal(t, "k", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestQueryCmd_PrintsAnswerAndSources(t *testing.T) {
	ts, cleanup := setupTestServicesWith()
	defer cleanup()

	out, err := execute(t, "query", "How long do card refunds take?")

	require.NoError(t, err)
	assert.Contains(t, out, "Card refunds are processed within five business days. [1]")
	assert.Contains(t, out, "SUPPORTED")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "[1] Card Policy (Refunds, dept CARD)")
	assert.Equal(t, "How long do card refunds take?", ts.query.lastQuestion)
	assert.True(t, ts.query.lastOpts.WantsMetadata())
}

func TestQueryCmd_PassesFlags(t *testing.T) {
	ts, cleanup := setupTestServicesWith()
	defer cleanup()

	_, err := execute(t, "query", "--top-k", "7", "--no-metadata", "-c", "faq", "refunds?")

	require.NoError(t, err)
	assert.Equal(t, 7, ts.query.lastOpts.TopK)
	assert.Equal(t, "faq", ts.query.lastOpts.Collection)
	assert.False(t, ts.query.lastOpts.WantsMetadata())
}

func TestQueryCmd_ContextFlagUsesConversation(t *testing.T) {
	ts, cleanup := setupTestServicesWith()
	defer cleanup()

	_, err := execute(t, "query", "--context", "We talked about credit cards.", "and debit?")

	require.NoError(t, err)
	assert.Equal(t, "We talked about credit cards.", ts.query.lastContext)
}

func TestQueryCmd_JSON(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "query", "--json", "refunds?")

	require.NoError(t, err)
	var result domain.QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Grounded)
	assert.Equal(t, domain.VerdictSupported, result.Verdict)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "card_policy", result.Sources[0].DocumentID)
}

func TestQueryCmd_ReturnsServiceError(t *testing.T) {
	ts, cleanup := setupTestServicesWith()
	defer cleanup()
	ts.query.err = domain.ErrInvalidArgument

	_, err := execute(t, "query", "x")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestBatchCmd_AnswersInFileOrder(t *testing.T) {
	ts, cleanup := setupTestServicesWith()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "questions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("questions:\n  - first question\n  - second question\n"), 0o600))

	out, err := execute(t, "batch", "--top-k", "2", path)

	require.NoError(t, err)
	assert.Equal(t, []string{"first question", "second question"}, ts.query.questions)
	assert.Equal(t, 2, ts.query.lastOpts.TopK)
	assert.Less(t, bytes.Index([]byte(out), []byte("first question")), bytes.Index([]byte(out), []byte("second question")))
}

func TestReadQuestions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
		wantErr bool
	}{
		{
			name:    "plain list",
			content: "- one\n- two\n",
			want:    []string{"one", "two"},
		},
		{
			name:    "questions mapping",
			content: "questions:\n  - one\n",
			want:    []string{"one"},
		},
		{
			name:    "empty mapping",
			content: "questions: []\n",
			wantErr: true,
		},
		{
			name:    "not yaml",
			content: ":\n\t- [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "q.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			got, err := readQuestions(path)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadQuestions_MissingFile(t *testing.T) {
	_, err := readQuestions(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}
