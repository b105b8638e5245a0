package screens

import (
	"bytes"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/clearkeydrm/ckcli/internal/keystore"
	"github.com/clearkeydrm/ckcli/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func testContentKey(t *testing.T, kidHex string, fill byte) models.ContentKey {
	t.Helper()
	kid, err := models.ParseKeyID(kidHex)
	require.NoError(t, err)

	k, err := keystore.NewContentKey(kid, bytes.Repeat([]byte{fill}, 16))
	require.NoError(t, err)
	return *k
}

func loadedKeysModel(t *testing.T) KeysModel {
	t.Helper()
	m := NewKeysModel(nil)
	m, _ = m.Update(KeysLoadedMsg{Keys: []models.ContentKey{
		testContentKey(t, "abcdef0123456789abcdef0123456789", 0x11),
		testContentKey(t, "00112233445566778899aabbccddeeff", 0x22),
	}})
	return m
}

func TestNewKeysModel(t *testing.T) {
	m := NewKeysModel(nil)

	assert.Equal(t, KeysStateLoading, m.state)
	assert.Nil(t, m.store)
	assert.Empty(t, m.keys)
	assert.NotNil(t, m.Init())
}

func TestKeysModel_WindowSizeMsg(t *testing.T) {
	m := NewKeysModel(nil)

	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.Equal(t, 120, m.width)
	assert.Equal(t, 40, m.height)
}

func TestKeysModel_KeysLoadedMsg(t *testing.T) {
	m := loadedKeysModel(t)

	assert.Equal(t, KeysStateReady, m.state)
	assert.Len(t, m.keys, 2)
	assert.Len(t, m.filtered, 2)

	selected := m.SelectedKey()
	require.NotNil(t, selected)
	assert.Equal(t, "abcdef0123456789abcdef0123456789", selected.KID.String())
}

func TestKeysModel_KeysErrorMsg(t *testing.T) {
	m := NewKeysModel(nil)

	m, _ = m.Update(KeysErrorMsg{Err: assert.AnError})

	assert.Equal(t, KeysStateError, m.state)
	assert.Error(t, m.err)
	assert.Contains(t, m.View(), "retry")
}

func TestKeysModel_BackNavigation(t *testing.T) {
	m := loadedKeysModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	navMsg, ok := cmd().(NavigateMsg)
	assert.True(t, ok)
	assert.Equal(t, "home", navMsg.Screen)
}

func TestKeysModel_RefreshKey(t *testing.T) {
	m := loadedKeysModel(t)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})

	assert.Equal(t, KeysStateLoading, m.state)
	assert.NotNil(t, cmd)
}

func TestKeysModel_Filter(t *testing.T) {
	m := loadedKeysModel(t)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	assert.True(t, m.filterActive)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("0011")})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, m.filterActive)
	assert.Equal(t, "0011", m.filterText)
	require.Len(t, m.filtered, 1)
	assert.Equal(t, "00112233445566778899aabbccddeeff", m.filtered[0].KID.String())
	assert.Contains(t, m.View(), "1 of 2 key(s)")

	// esc clears the filter before navigating back
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd)
	assert.Empty(t, m.filterText)
	assert.Len(t, m.filtered, 2)
}

func TestKeysModel_DeleteConfirm(t *testing.T) {
	m := loadedKeysModel(t)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	require.Equal(t, KeysStateDeleteConfirm, m.state)
	assert.Equal(t, "abcd", m.deleteConfirmText)
	assert.Contains(t, m.View(), "Delete Key")

	t.Run("wrong text stays in confirmation", func(t *testing.T) {
		m, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("0000")})
		m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

		assert.Equal(t, KeysStateDeleteConfirm, m.state)
		assert.Nil(t, cmd)
		assert.Contains(t, m.View(), "Does not match")
	})

	t.Run("esc cancels", func(t *testing.T) {
		m, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})

		assert.Equal(t, KeysStateReady, m.state)
		assert.Nil(t, m.deleteKey)
	})

	t.Run("matching text deletes", func(t *testing.T) {
		m, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ABCD")})
		m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

		assert.Equal(t, KeysStateDeleting, m.state)
		assert.NotNil(t, cmd)
	})
}

func TestKeysModel_KeyDeletedMsg(t *testing.T) {
	m := NewKeysModel(nil)
	m.state = KeysStateDeleting

	m, cmd := m.Update(KeyDeletedMsg{})

	assert.Equal(t, KeysStateLoading, m.state)
	assert.NotNil(t, cmd)
}

func TestKeysModel_StoreCommands(t *testing.T) {
	keyring.MockInit()
	store := keystore.NewKeychainStore("ckcli-test")

	first := testContentKey(t, "abcdef0123456789abcdef0123456789", 0x11)
	second := testContentKey(t, "00112233445566778899aabbccddeeff", 0x22)
	require.NoError(t, store.Save(&first))
	require.NoError(t, store.Save(&second))

	m := NewKeysModel(store)

	loaded, ok := m.loadKeys()().(KeysLoadedMsg)
	require.True(t, ok)
	require.Len(t, loaded.Keys, 2)
	assert.Equal(t, second.KID, loaded.Keys[0].KID)
	assert.Equal(t, first.Key, loaded.Keys[1].Key)

	deleted, ok := m.deleteKeyCmd(first.KID)().(KeyDeletedMsg)
	require.True(t, ok)
	assert.Equal(t, first.KID, deleted.KID)

	loaded, ok = m.loadKeys()().(KeysLoadedMsg)
	require.True(t, ok)
	assert.Len(t, loaded.Keys, 1)

	failed, ok := m.deleteKeyCmd(first.KID)().(KeysErrorMsg)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Err, keystore.ErrKeyNotFound)
}

func TestKeysModel_NoStore(t *testing.T) {
	m := NewKeysModel(nil)

	msg, ok := m.loadKeys()().(KeysErrorMsg)
	require.True(t, ok)
	assert.Error(t, msg.Err)
}

func TestKeysModel_View(t *testing.T) {
	m := loadedKeysModel(t)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	view := m.View()

	assert.Contains(t, view, "Keys")
	assert.Contains(t, view, "abcdef0123456789abcdef0123456789")
	assert.NotContains(t, view, "11111111111111111111111111111111")
	assert.Contains(t, view, "delete")
}

func TestKeysModel_ViewEmpty(t *testing.T) {
	m := NewKeysModel(nil)
	m, _ = m.Update(KeysLoadedMsg{})

	assert.Contains(t, m.View(), "No keys found")
}

func TestKeysModel_ViewLoading(t *testing.T) {
	m := NewKeysModel(nil)

	assert.Contains(t, m.View(), "Loading keys")
}
