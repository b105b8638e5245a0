package screens

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/clearkeydrm/ckcli/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelfTestModel(t *testing.T) {
	m := NewSelfTestModel(crypto.NewSoftwareCipher(0), "software")

	assert.Equal(t, SelfTestStateRunning, m.state)
	assert.False(t, m.Passed())
	assert.NotNil(t, m.Init())
}

func TestSelfTestModel_RunVectors(t *testing.T) {
	m := NewSelfTestModel(crypto.NewSoftwareCipher(0), "software")

	msg, ok := m.runVectors()().(SelfTestDoneMsg)
	require.True(t, ok)
	assert.Len(t, msg.Results, len(crypto.KnownVectors))

	m, _ = m.Update(msg)

	assert.Equal(t, SelfTestStateDone, m.state)
	assert.True(t, m.Passed())
	assert.Contains(t, m.View(), "All vectors passed")
	assert.Contains(t, m.View(), "unaligned split")
}

func TestSelfTestModel_Failure(t *testing.T) {
	closed := crypto.NewEnclaveCipher(crypto.NewLoopbackSession())
	m := NewSelfTestModel(closed, "enclave")

	m, _ = m.Update(m.runVectors()())

	assert.False(t, m.Passed())
	view := m.View()
	assert.Contains(t, view, "Self-test failed")
	assert.Contains(t, view, "cipher unavailable")
	assert.Contains(t, view, "enclave backend")
}

func TestSelfTestModel_RunAgain(t *testing.T) {
	m := NewSelfTestModel(crypto.NewSoftwareCipher(0), "software")
	m, _ = m.Update(SelfTestDoneMsg{Results: []crypto.VectorResult{{Name: "x"}}})

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})

	assert.Equal(t, SelfTestStateRunning, m.state)
	assert.Nil(t, m.results)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Running vectors")
}

func TestSelfTestModel_BackNavigation(t *testing.T) {
	m := NewSelfTestModel(nil, "software")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	navMsg, ok := cmd().(NavigateMsg)
	assert.True(t, ok)
	assert.Equal(t, "home", navMsg.Screen)
}
