package services

import (
	"context"
	"testing"

	"github.com/dukex/hireflow/pkg/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_SwitchDiscardsPreviousView(t *testing.T) {
	client := new(mocks.MockRemoteAPI)
	expectLoad(client, "wf-1")
	expectLoad(client, "wf-2")

	catalog := NewCatalog(client)
	session := NewSession(catalog)

	_, err := session.Current()
	require.ErrorIs(t, err, ErrWorkflowNotLoaded)

	first, err := session.Switch(context.Background(), "wf-1")
	require.NoError(t, err)

	second, err := session.Switch(context.Background(), "wf-2")
	require.NoError(t, err)

	assert.True(t, first.Board.Closed())
	assert.False(t, second.Board.Closed())
	assert.Equal(t, "wf-2", session.WorkflowID())

	_, err = catalog.Get("wf-1")
	require.ErrorIs(t, err, ErrWorkflowNotLoaded)

	current, err := session.Current()
	require.NoError(t, err)
	assert.Same(t, second, current)
}

func TestSession_SharedViewSurvivesOneViewerLeaving(t *testing.T) {
	client := new(mocks.MockRemoteAPI)
	expectLoad(client, "wf-1")
	expectLoad(client, "wf-2")

	catalog := NewCatalog(client)
	sessions := NewSessions(catalog)

	a, err := sessions.For("alice").Switch(context.Background(), "wf-1")
	require.NoError(t, err)

	b, err := sessions.For("bob").Switch(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = sessions.For("alice").Switch(context.Background(), "wf-2")
	require.NoError(t, err)
	assert.False(t, a.Board.Closed(), "bob still holds wf-1")

	sessions.End(context.Background(), "bob")
	assert.True(t, a.Board.Closed())
}

func TestSession_SwitchToSameWorkflowKeepsView(t *testing.T) {
	client := new(mocks.MockRemoteAPI)
	expectLoad(client, "wf-1")

	session := NewSession(NewCatalog(client))

	first, err := session.Switch(context.Background(), "wf-1")
	require.NoError(t, err)

	again, err := session.Switch(context.Background(), "wf-1")
	require.NoError(t, err)

	assert.Same(t, first, again)
	assert.False(t, first.Board.Closed())
}
