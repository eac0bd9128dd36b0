package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCmd_ShowsMessage(t *testing.T) {
	// Given: an indexed mailbox
	env := newTestEnv(t)
	env.indexMailbox(t)

	// When: showing the invoice
	out, err := env.run(t, "get", "m1@example.com")

	// Then: headers and body are printed
	require.NoError(t, err, out)
	assert.Contains(t, out, "Invoice #100")
	assert.Contains(t, out, "billing@x.com")
	assert.Contains(t, out, "Please pay the attached invoice.")
}

func TestGetCmd_UnknownID(t *testing.T) {
	// Given: an indexed mailbox
	env := newTestEnv(t)
	env.indexMailbox(t)

	// When: asking for an id that does not exist
	_, err := env.run(t, "get", "missing@example.com")

	// Then: the lookup fails
	require.Error(t, err)
}

func TestRemoveCmd_DropsFromBothIndexes(t *testing.T) {
	// Given: an indexed mailbox
	env := newTestEnv(t)
	env.indexMailbox(t)

	// When: removing the invoice and an unknown id
	out, err := env.run(t, "remove", "m1@example.com", "missing@example.com")
	require.NoError(t, err, out)

	// Then: it is gone from lexical results and its embedding is deleted
	search, err := env.run(t, "search", "invoice", "--json")
	require.NoError(t, err)
	assert.Equal(t, 0, decodeJSON[searchJSON](t, search).Total)

	status, err := env.run(t, "status", "--json")
	require.NoError(t, err)
	st := decodeJSON[statusJSON](t, status)
	assert.Equal(t, 1, st.Documents)
	assert.Equal(t, 1, st.Embeddings)
}

func TestReindexCmd_ReadsFromMaildir(t *testing.T) {
	// Given: an indexed mailbox whose invoice embedding was removed
	env := newTestEnv(t)
	env.indexMailbox(t)
	_, err := env.run(t, "remove", "m1@example.com")
	require.NoError(t, err)

	// When: reindexing it from the maildir
	out, err := env.run(t, "reindex", "--maildir", env.maildir, "m1@example.com")

	// Then: the message and its embedding are back
	require.NoError(t, err, out)
	status, err := env.run(t, "status", "--json")
	require.NoError(t, err)
	st := decodeJSON[statusJSON](t, status)
	assert.Equal(t, 2, st.Documents)
	assert.Equal(t, 2, st.Embeddings)
}

func TestReindexCmd_UnknownIDFails(t *testing.T) {
	// Given: an indexed mailbox
	env := newTestEnv(t)
	env.indexMailbox(t)

	// When: reindexing an id the maildir does not hold
	out, err := env.run(t, "reindex", "--maildir", env.maildir, "missing@example.com")

	// Then: the command reports the failure
	require.Error(t, err)
	assert.Contains(t, out, "missing@example.com")
}
