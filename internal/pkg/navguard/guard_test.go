package navguard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPrompter struct {
	answer   bool
	err      error
	messages []string
}

func (p *scriptedPrompter) Confirm(_ context.Context, message string) (bool, error) {
	p.messages = append(p.messages, message)
	return p.answer, p.err
}

func newArmedGuard(t *testing.T, answer bool) (*Browser, *Guard, *scriptedPrompter, *scriptedPrompter) {
	t.Helper()
	platform := &scriptedPrompter{answer: true}
	prompter := &scriptedPrompter{answer: answer}
	b := NewBrowser("/asistencia", platform)
	g := New(b, prompter)
	require.NoError(t, g.Sync(true))
	require.Equal(t, StateArmed, g.State())
	return b, g, prompter, platform
}

func TestGuard_ClickDeclined(t *testing.T) {
	b, _, prompter, _ := newArmedGuard(t, false)

	otherSaw := false
	b.Document.AddListener(EventClick, PhaseBubble, func(*Event) { otherSaw = true })

	navigated, err := b.Click(context.Background(), "/historial")
	require.NoError(t, err)

	assert.False(t, navigated)
	assert.False(t, otherSaw)
	assert.Equal(t, "/asistencia", b.Router.Path())
	assert.Equal(t, []string{"¿Salir sin guardar los cambios?"}, prompter.messages)
}

func TestGuard_ClickAccepted(t *testing.T) {
	b, _, _, _ := newArmedGuard(t, true)

	navigated, err := b.Click(context.Background(), "/historial")
	require.NoError(t, err)
	assert.True(t, navigated)
	assert.Equal(t, "/historial", b.Router.Path())
}

func TestGuard_ClickOutsideLinkIsIgnored(t *testing.T) {
	b, _, prompter, _ := newArmedGuard(t, false)

	_, err := b.Click(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, prompter.messages)
}

func TestGuard_ProgrammaticNavigation(t *testing.T) {
	b, _, prompter, _ := newArmedGuard(t, false)

	require.NoError(t, b.Router.Push(context.Background(), "/cursos"))
	require.NoError(t, b.Router.Replace(context.Background(), "/cursos"))
	assert.Equal(t, "/asistencia", b.Router.Path())
	assert.Equal(t, 1, b.History.Len())
	assert.Len(t, prompter.messages, 2)

	prompter.answer = true
	require.NoError(t, b.Router.Push(context.Background(), "/cursos"))
	assert.Equal(t, "/cursos", b.Router.Path())
}

func TestGuard_BackDeclinedRestoresPath(t *testing.T) {
	platform := &scriptedPrompter{answer: true}
	prompter := &scriptedPrompter{answer: false}
	b := NewBrowser("/inicio", platform)
	require.NoError(t, b.Router.Push(context.Background(), "/asistencia"))

	g := New(b, prompter, WithLocale("en"))
	require.NoError(t, g.Sync(true))

	assert.False(t, b.Back(context.Background()))
	assert.Equal(t, "/asistencia", b.Router.Path())
	assert.Equal(t, "/asistencia", b.History.Path())
	assert.Equal(t, []string{"Leave without saving changes?"}, prompter.messages)
}

func TestGuard_BackAccepted(t *testing.T) {
	b := NewBrowser("/inicio", nil)
	require.NoError(t, b.Router.Push(context.Background(), "/asistencia"))
	g := New(b, &scriptedPrompter{answer: true})
	require.NoError(t, g.Sync(true))

	assert.True(t, b.Back(context.Background()))
	assert.Equal(t, "/inicio", b.Router.Path())
}

func TestGuard_UnloadUsesPlatformPrompt(t *testing.T) {
	b, _, prompter, platform := newArmedGuard(t, true)

	platform.answer = false
	leave, err := b.Unload(context.Background())
	require.NoError(t, err)
	assert.False(t, leave)
	assert.Equal(t, []string{GenericUnloadMessage}, platform.messages)
	assert.Empty(t, prompter.messages)
}

func TestGuard_PromptErrorCountsAsDecline(t *testing.T) {
	b, _, prompter, _ := newArmedGuard(t, true)
	prompter.err = errors.New("stdin closed")

	navigated, err := b.Click(context.Background(), "/historial")
	require.NoError(t, err)
	assert.False(t, navigated)
}

func TestGuard_ReleaseDetachesEverything(t *testing.T) {
	b, g, prompter, platform := newArmedGuard(t, false)

	require.NoError(t, g.Sync(false))
	assert.Equal(t, StateIdle, g.State())
	assert.Zero(t, b.Window.ListenerCount(EventBeforeUnload))
	assert.Zero(t, b.Window.ListenerCount(EventPopState))
	assert.Zero(t, b.Document.ListenerCount(EventClick))

	leave, err := b.Unload(context.Background())
	require.NoError(t, err)
	assert.True(t, leave)
	assert.Empty(t, platform.messages)

	require.NoError(t, b.Router.Push(context.Background(), "/cursos"))
	assert.Equal(t, "/cursos", b.Router.Path())
	assert.Empty(t, prompter.messages)
}

func TestGuard_SingleIntercept(t *testing.T) {
	_, g, _, _ := newArmedGuard(t, true)

	_, err := g.Arm()
	assert.ErrorIs(t, err, ErrAlreadyArmed)
	assert.NoError(t, g.Sync(true))
}

func TestGuard_CloseIsTeardown(t *testing.T) {
	b, g, _, _ := newArmedGuard(t, false)

	g.Close()
	assert.Equal(t, StateIdle, g.State())
	assert.Zero(t, b.Document.ListenerCount(EventClick))

	_, err := g.Arm()
	assert.ErrorIs(t, err, ErrGuardClosed)
}

func TestIntercept_ReleaseTwice(t *testing.T) {
	b := NewBrowser("/", nil)
	g := New(b, &scriptedPrompter{})

	in, err := g.Arm()
	require.NoError(t, err)
	in.Release()
	in.Release()

	again, err := g.Arm()
	require.NoError(t, err)
	in.Release()
	assert.Equal(t, StateArmed, g.State())
	again.Release()
	assert.Equal(t, StateIdle, g.State())
}
